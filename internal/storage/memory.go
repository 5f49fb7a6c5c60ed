package storage

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
)

// MemoryStorage is an in-process Store using brute-force cosine similarity.
// It backs tests and local runs without a Qdrant server.
type MemoryStorage struct {
	mu        sync.RWMutex
	papers    []Paper
	paperIdx  map[string]int
	chunks    map[Field][]Chunk
	dimension map[Field]int
	indexes   map[string]IndexDefinition
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{}
	s.reset()
	return s
}

func (s *MemoryStorage) reset() {
	s.papers = nil
	s.paperIdx = make(map[string]int)
	s.chunks = make(map[Field][]Chunk)
	s.dimension = make(map[Field]int)
	s.indexes = make(map[string]IndexDefinition)
}

func (s *MemoryStorage) EnsurePapers(ctx context.Context) error { return nil }

// InsertPapers upserts papers by id.
func (s *MemoryStorage) InsertPapers(ctx context.Context, papers []Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range papers {
		if i, ok := s.paperIdx[p.ID]; ok {
			s.papers[i] = p
			continue
		}
		s.paperIdx[p.ID] = len(s.papers)
		s.papers = append(s.papers, p)
	}
	return nil
}

func (s *MemoryStorage) ListPapers(ctx context.Context) ([]Paper, error) {
	s.mu.RLock()
	out := slices.Clone(s.papers)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b Paper) int { return a.Ordinal - b.Ordinal })
	return out, nil
}

func (s *MemoryStorage) GetPapers(ctx context.Context, ids []string) ([]Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Paper, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.paperIdx[id]; ok {
			out = append(out, s.papers[i])
		}
	}
	return out, nil
}

func (s *MemoryStorage) PrepareChunkCollection(ctx context.Context, field Field, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", ErrDimensionMismatch, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dimension[field]; !ok {
		s.dimension[field] = dimension
	}
	return nil
}

func (s *MemoryStorage) InsertChunks(ctx context.Context, field Field, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, ok := s.dimension[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, ChunkCollection(field))
	}
	for i, c := range chunks {
		if len(c.Vector) != dim {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(c.Vector), dim)
		}
	}
	s.chunks[field] = append(s.chunks[field], chunks...)
	return nil
}

func (s *MemoryStorage) CreateSearchIndex(ctx context.Context, def IndexDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, ok := s.dimension[def.Field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, ChunkCollection(def.Field))
	}
	if dim != def.Dimension {
		return fmt.Errorf("%w: index %s declares %d, collection has %d",
			ErrDimensionMismatch, def.Name, def.Dimension, dim)
	}
	s.indexes[def.Name] = def
	return nil
}

func (s *MemoryStorage) SearchChunks(ctx context.Context, q VectorQuery) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.indexes[q.IndexName]
	if !ok || def.Field != q.Field {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, q.IndexName)
	}
	if len(q.Vector) != def.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(q.Vector), def.Dimension)
	}

	stored := s.chunks[q.Field]
	scored := make([]Chunk, len(stored))
	for i, c := range stored {
		c.Score = cosine(c.Vector, q.Vector)
		c.Vector = nil
		scored[i] = c
	}
	slices.SortStableFunc(scored, func(a, b Chunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if q.Limit < len(scored) {
		scored = scored[:max(q.Limit, 0)]
	}
	return scored, nil
}

func (s *MemoryStorage) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &Stats{
		Papers:  len(s.papers),
		Chunks:  make(map[Field]int),
		Indexed: make(map[Field]bool),
	}
	for _, field := range []Field{FieldTitle, FieldAbstract} {
		stats.Chunks[field] = len(s.chunks[field])
		_, stats.Indexed[field] = s.indexes[IndexName(field)]
	}
	return stats, nil
}

func (s *MemoryStorage) Health(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStorage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
