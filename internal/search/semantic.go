package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Chavalentas/Semantic-Search-Project/internal/chunking"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// Embedder turns query texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticComposer answers queries with approximate nearest neighbour
// search over chunk collections, then reassembles the parent papers.
//
// Query flow:
// 1. Preprocess the query the way chunks were preprocessed at ingestion
// 2. Embed it
// 3. Query the field's index for the closest chunks
// 4. Resolve the distinct parents with one lookup
// 5. Drop chunks whose parent is missing
type SemanticComposer struct {
	store         storage.Store
	embedder      Embedder
	preprocessor  *chunking.Preprocessor
	dimension     int
	numCandidates int
	onOrphan      func(storage.Chunk)
	logger        *slog.Logger
}

// NewSemanticComposer creates a composer issuing queries with
// storage.DefaultNumCandidates candidates.
func NewSemanticComposer(store storage.Store, embedder Embedder, pre *chunking.Preprocessor, dimension int, logger *slog.Logger) *SemanticComposer {
	if logger == nil {
		logger = slog.Default()
	}
	if pre == nil {
		pre = chunking.NewEnglishPreprocessor()
	}
	return &SemanticComposer{
		store:         store,
		embedder:      embedder,
		preprocessor:  pre,
		dimension:     dimension,
		numCandidates: storage.DefaultNumCandidates,
		logger:        logger,
	}
}

// nearest returns the amount closest chunks of field, without vectors.
func (s *SemanticComposer) nearest(ctx context.Context, query string, amount int, field storage.Field) ([]storage.Chunk, error) {
	vectors, err := s.embedder.Embed(ctx, []string{s.preprocessor.Preprocess(query)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != s.dimension {
		return nil, fmt.Errorf("%w: query embedding does not have %d dimensions", storage.ErrDimensionMismatch, s.dimension)
	}

	chunks, err := s.store.SearchChunks(ctx, storage.VectorQuery{
		IndexName:     storage.IndexName(field),
		Field:         field,
		Path:          storage.VectorPath,
		Vector:        vectors[0],
		// The pool stays at numCandidates unless amount alone exceeds it.
		NumCandidates: max(s.numCandidates, amount),
		Limit:         amount,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return chunks, nil
}

// resolve fetches the parents of chunks. Chunks without a stored parent
// are reported and left out of the returned slice.
func (s *SemanticComposer) resolve(ctx context.Context, chunks []storage.Chunk) ([]storage.Chunk, map[string]storage.Paper, error) {
	ids := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.PaperID]; !ok {
			seen[c.PaperID] = struct{}{}
			ids = append(ids, c.PaperID)
		}
	}

	papers, err := s.store.GetPapers(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve parents: %w", err)
	}
	byID := make(map[string]storage.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	kept := chunks[:0:0]
	for _, c := range chunks {
		if _, ok := byID[c.PaperID]; !ok {
			s.logger.Warn("Skipping chunk", "paper_id", c.PaperID, "field", c.Field, "error", ErrOrphanChunk)
			if s.onOrphan != nil {
				s.onOrphan(c)
			}
			continue
		}
		kept = append(kept, c)
	}
	return kept, byID, nil
}

// Titles returns the papers whose titles are closest to query, closest first.
func (s *SemanticComposer) Titles(ctx context.Context, query string, amount int) ([]storage.Paper, error) {
	if amount == 0 {
		return []storage.Paper{}, nil
	}
	chunks, err := s.nearest(ctx, query, amount, storage.FieldTitle)
	if err != nil {
		return nil, err
	}
	kept, parents, err := s.resolve(ctx, chunks)
	if err != nil {
		return nil, err
	}

	out := make([]storage.Paper, 0, len(kept))
	added := make(map[string]struct{}, len(kept))
	for _, c := range kept {
		if _, dup := added[c.PaperID]; dup {
			continue
		}
		added[c.PaperID] = struct{}{}
		out = append(out, parents[c.PaperID])
	}
	return out, nil
}

// Abstracts returns papers with their matching abstract sentences. Papers
// appear in the order their first chunk was ranked; each paper's chunks
// keep rank order.
func (s *SemanticComposer) Abstracts(ctx context.Context, query string, amount int) ([]storage.PaperChunks, error) {
	if amount == 0 {
		return []storage.PaperChunks{}, nil
	}
	chunks, err := s.nearest(ctx, query, amount, storage.FieldAbstract)
	if err != nil {
		return nil, err
	}
	kept, parents, err := s.resolve(ctx, chunks)
	if err != nil {
		return nil, err
	}

	var out []storage.PaperChunks
	pos := make(map[string]int)
	for _, c := range kept {
		i, ok := pos[c.PaperID]
		if !ok {
			i = len(out)
			pos[c.PaperID] = i
			out = append(out, storage.PaperChunks{Paper: parents[c.PaperID]})
		}
		out[i].Chunks = append(out[i].Chunks, c)
	}
	if out == nil {
		out = []storage.PaperChunks{}
	}
	return out, nil
}
