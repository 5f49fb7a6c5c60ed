package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, offline embedder. Each token is hashed
// to a signed bucket and the bag of buckets is L2-normalized, so texts
// sharing tokens have positive cosine similarity.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Model() string { return "fnv-hash" }

func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed never fails except on a cancelled context.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	for _, tok := range strings.Fields(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		sum := f.Sum32()
		idx := int(sum % uint32(h.dimension))
		if sum&(1<<31) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
