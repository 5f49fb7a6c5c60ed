// Package embedding produces fixed-size vectors for preprocessed text.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the reduced output size requested from the model.
	// This matches storage.VectorDimension.
	DefaultDimension = 384

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	DefaultBatchSize = 500
)

// Embedder generates embeddings with the OpenAI embeddings API.
// It batches requests and implements exponential backoff on rate limit errors.
type Embedder struct {
	client    *Client
	model     string
	dimension int
	batchSize int
}

// NewEmbedder creates an Embedder. Zero values select the defaults.
func NewEmbedder(client *Client, model string, dimension, batchSize int) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}
}

// Model identifies the embedding space, used to namespace cached vectors.
func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		embeddings, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

// embedBatchWithRetry retries with exponential backoff on rate limit errors.
// Other errors are treated as permanent and fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	// The API rejects empty strings; a preprocessed text may legitimately be empty.
	input := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			t = " "
		}
		input[i] = t
	}

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: input,
			},
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: openai.Int(int64(e.dimension)),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		embeddings = make([][]float32, len(resp.Data))
		for _, data := range resp.Data {
			if int(data.Index) < len(embeddings) {
				embeddings[data.Index] = toFloat32(data.Embedding)
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
