// Package indexer runs the offline flows: paper ingestion from a
// bibliographic source and chunk indexing of a stored corpus.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Chavalentas/Semantic-Search-Project/internal/chunking"
	"github.com/Chavalentas/Semantic-Search-Project/internal/loader"
	"github.com/Chavalentas/Semantic-Search-Project/internal/prep"
	"github.com/Chavalentas/Semantic-Search-Project/internal/source"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// IngestOptions controls one IngestPapers run.
type IngestOptions struct {
	// Target is the number of raw records to fetch.
	Target int
	// Amount is the number of papers kept after preparation.
	// Zero means Target.
	Amount                int
	ExcludeEmptyTitles    bool
	ExcludeEmptyAbstracts bool
}

// IngestResult contains statistics about an ingestion run.
type IngestResult struct {
	Source   string
	Fetched  int
	Prepared int
	Inserted int
	Duration time.Duration
}

// IndexResult contains statistics about a chunk indexing run.
type IndexResult struct {
	Field      storage.Field
	Papers     int
	Sentences  int
	Duplicates int
	Chunks     int
	Duration   time.Duration
}

// Pipeline orchestrates fetching, preparation, chunking and loading.
// Stages run strictly one after another.
type Pipeline struct {
	store        storage.Store
	embedder     chunking.Embedder
	preprocessor *chunking.Preprocessor
	dimension    int
	batchSize    int
	chunkOpts    []chunking.Option
	logger       *slog.Logger
}

// NewPipeline creates a new indexing pipeline. batchSize is the number of
// records per insert request. chunkOpts are passed to every chunking run.
func NewPipeline(
	store storage.Store,
	embedder chunking.Embedder,
	pre *chunking.Preprocessor,
	dimension int,
	batchSize int,
	logger *slog.Logger,
	chunkOpts ...chunking.Option,
) (*Pipeline, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", loader.ErrInvalidBatchSize, batchSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pre == nil {
		pre = chunking.NewEnglishPreprocessor()
	}
	return &Pipeline{
		store:        store,
		embedder:     embedder,
		preprocessor: pre,
		dimension:    dimension,
		batchSize:    batchSize,
		chunkOpts:    chunkOpts,
		logger:       logger,
	}, nil
}

// IngestPapers fetches raw records from pager, prepares them and loads
// them into the papers collection.
func (p *Pipeline) IngestPapers(ctx context.Context, pager source.Pager, opts IngestOptions) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{Source: pager.Name()}

	amount := opts.Amount
	if amount == 0 {
		amount = opts.Target
	}
	preparator, err := prep.NewPreparator(amount, opts.ExcludeEmptyTitles, opts.ExcludeEmptyAbstracts)
	if err != nil {
		return nil, err
	}

	if err := p.store.EnsurePapers(ctx); err != nil {
		return nil, fmt.Errorf("ensure papers collection: %w", err)
	}

	p.logger.Info("Starting ingestion", "source", result.Source, "target", opts.Target)
	raw, err := source.Fetch(ctx, pager, opts.Target, p.logger)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	result.Fetched = len(raw)

	papers, err := preparator.Prepare(raw)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	result.Prepared = len(papers)
	p.logger.Info("Prepared papers", "fetched", result.Fetched, "kept", result.Prepared)

	if err := p.continueOrdinals(ctx, papers); err != nil {
		return nil, err
	}

	inserted, err := loader.LoadPapers(ctx, p.store, papers, p.batchSize)
	result.Inserted = inserted
	if err != nil {
		return result, fmt.Errorf("load papers: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion complete",
		"source", result.Source,
		"inserted", result.Inserted,
		"duration", result.Duration,
	)
	return result, nil
}

// continueOrdinals places papers after the stored corpus. A paper whose id
// is already stored keeps its ordinal.
func (p *Pipeline) continueOrdinals(ctx context.Context, papers []storage.Paper) error {
	stored, err := p.store.ListPapers(ctx)
	if err != nil {
		return fmt.Errorf("list stored papers: %w", err)
	}
	known := make(map[string]int, len(stored))
	next := 0
	for _, s := range stored {
		known[s.ID] = s.Ordinal
		next = max(next, s.Ordinal+1)
	}
	for i := range papers {
		if ord, ok := known[papers[i].ID]; ok {
			papers[i].Ordinal = ord
			continue
		}
		papers[i].Ordinal = next
		next++
	}
	return nil
}

// IndexChunks chunks and embeds field of every stored paper, loads the
// chunks and provisions the field's search index.
func (p *Pipeline) IndexChunks(ctx context.Context, field storage.Field) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{Field: field}

	papers, err := p.store.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	result.Papers = len(papers)
	if len(papers) == 0 {
		return nil, errors.New("no papers stored, run ingestion first")
	}
	p.logger.Info("Starting chunk indexing", "field", field, "papers", len(papers))

	chunker, err := chunking.NewPipeline(field, p.preprocessor, p.embedder, p.dimension,
		append([]chunking.Option{chunking.WithLogger(p.logger)}, p.chunkOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("create chunking pipeline: %w", err)
	}
	defer chunker.Release()

	chunked, err := chunker.Run(ctx, papers)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", field, err)
	}
	result.Sentences = chunked.Sentences
	result.Duplicates = chunked.Duplicates
	p.logger.Debug("Chunked field", "field", field, "chunks", len(chunked.Chunks),
		"duplicates", chunked.Duplicates)

	if err := p.store.PrepareChunkCollection(ctx, field, p.dimension); err != nil {
		return nil, fmt.Errorf("prepare chunk collection: %w", err)
	}

	inserted, err := loader.LoadChunks(ctx, p.store, field, chunked.Chunks, p.batchSize)
	result.Chunks = inserted
	if err != nil {
		return result, fmt.Errorf("load chunks: %w", err)
	}

	if err := loader.ProvisionIndex(ctx, p.store, loader.IndexFor(field, p.dimension), chunked.Chunks); err != nil {
		return result, fmt.Errorf("provision index: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Chunk indexing complete",
		"field", field,
		"chunks", result.Chunks,
		"duplicates", result.Duplicates,
		"duration", result.Duration,
	)
	return result, nil
}
