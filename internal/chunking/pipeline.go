// Package chunking splits paper fields into sentence chunks, deduplicates
// them on their preprocessed form and attaches embeddings.
package chunking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DedupScope selects the key chunks are deduplicated on.
type DedupScope string

const (
	// DedupGlobal keeps the first chunk per preprocessed text across the corpus.
	DedupGlobal DedupScope = "global"
	// DedupDocument keeps the first chunk per preprocessed text within a paper.
	DedupDocument DedupScope = "document"
)

// ParseDedupScope converts a configured scope name.
func ParseDedupScope(s string) (DedupScope, error) {
	switch DedupScope(s) {
	case DedupGlobal, DedupDocument:
		return DedupScope(s), nil
	case "":
		return DedupGlobal, nil
	}
	return "", fmt.Errorf("unknown dedup scope %q", s)
}

const defaultEmbedBatchSize = 64

var ErrEmbeddingCount = errors.New("embedder returned wrong number of vectors")

// Result reports what a Run produced.
type Result struct {
	Chunks     []storage.Chunk
	Sentences  int
	Duplicates int
}

// Pipeline runs split, preprocess, deduplicate, embed and explode for one field.
type Pipeline struct {
	field        storage.Field
	splitter     Splitter
	preprocessor *Preprocessor
	embedder     Embedder
	dimension    int
	scope        DedupScope
	batchSize    int
	pool         *ants.Pool
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.batchSize = size
		}
		return nil
	}
}

// WithDedupScope overrides the default global deduplication.
func WithDedupScope(scope DedupScope) Option {
	return func(p *Pipeline) error {
		p.scope = scope
		return nil
	}
}

// WithSplitter replaces the field's default splitter.
func WithSplitter(s Splitter) Option {
	return func(p *Pipeline) error {
		p.splitter = s
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// NewPipeline creates a pipeline for field producing vectors of dimension.
func NewPipeline(field storage.Field, pre *Preprocessor, embedder Embedder, dimension int, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if pre == nil {
		pre = NewEnglishPreprocessor()
	}

	p := &Pipeline{
		field:        field,
		preprocessor: pre,
		embedder:     embedder,
		dimension:    dimension,
		scope:        DedupGlobal,
		batchSize:    defaultEmbedBatchSize,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.splitter == nil {
		splitter, err := SplitterFor(field)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.splitter = splitter
	}
	if p.pool == nil {
		if err := WithPoolSize(runtime.NumCPU() / 2)(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Release frees the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

type candidate struct {
	paperID      string
	raw          string
	preprocessed string
}

// Run chunks the field of every paper. Papers are visited in input order;
// of all chunks sharing a dedup key only the first is kept.
func (p *Pipeline) Run(ctx context.Context, papers []storage.Paper) (*Result, error) {
	result := &Result{}

	type dedupKey struct {
		paperID string
		text    string
	}
	seen := make(map[dedupKey]struct{})
	var kept []candidate

	for _, paper := range papers {
		for _, sentence := range p.splitter.Split(paper.Text(p.field)) {
			result.Sentences++
			c := candidate{
				paperID:      paper.ID,
				raw:          sentence,
				preprocessed: p.preprocessor.Preprocess(sentence),
			}

			key := dedupKey{text: c.preprocessed}
			if p.scope == DedupDocument {
				key.paperID = paper.ID
			}
			if _, dup := seen[key]; dup {
				result.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			kept = append(kept, c)
		}
	}
	p.logger.Debug("Split field", "field", p.field, "papers", len(papers),
		"sentences", result.Sentences, "unique", len(kept))

	texts := make([]string, len(kept))
	for i, c := range kept {
		texts[i] = c.preprocessed
	}
	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	result.Chunks = make([]storage.Chunk, len(kept))
	for i, c := range kept {
		result.Chunks[i] = storage.Chunk{
			PaperID: c.paperID,
			Text:    c.raw,
			Field:   p.field,
			Vector:  vectors[i],
			Key:     c.preprocessed,
		}
	}
	return result, nil
}

// embedAll embeds texts in batches on the worker pool. The returned
// vectors are in the order of texts.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for i := 0; i < len(texts); i += p.batchSize {
		start, end := i, min(i+p.batchSize, len(texts))
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			batch, err := p.embedder.Embed(ctx, texts[start:end])
			if err != nil {
				fail(fmt.Errorf("embed batch %d-%d: %w", start, end, err))
				return
			}
			if len(batch) != end-start {
				fail(fmt.Errorf("%w: batch %d-%d got %d", ErrEmbeddingCount, start, end, len(batch)))
				return
			}
			for j, v := range batch {
				if len(v) != p.dimension {
					fail(fmt.Errorf("%w: text %d has %d dimensions, expected %d",
						storage.ErrDimensionMismatch, start+j, len(v), p.dimension))
					return
				}
				vectors[start+j] = v
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}
