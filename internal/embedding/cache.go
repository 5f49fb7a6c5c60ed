package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var cacheTracer = otel.Tracer("embedding.cache")

// ErrCacheMiss is returned by VectorCache.Get for unknown keys.
var ErrCacheMiss = errors.New("cache miss")

// VectorCache stores vectors by key.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

// RedisCache is a VectorCache backed by Redis string values.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache wraps rdb. Keys are stored under prefix.
func NewRedisCache(rdb redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, ErrCacheMiss
		}
		span.RecordError(err)
		return nil, err
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode cached vector: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return vector, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	raw, err := json.Marshal(vector)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encode vector: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Source is an embedder that can name its embedding space.
type Source interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// CachedEmbedder answers from a VectorCache before calling the wrapped
// embedder. Cache failures are logged and otherwise ignored.
type CachedEmbedder struct {
	next   Source
	cache  VectorCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder wraps next with cache.
func NewCachedEmbedder(next Source, cache VectorCache, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Model() string { return c.next.Model() }

func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *CachedEmbedder) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("%s:%d:%s", c.next.Model(), c.next.Dimension(), hex.EncodeToString(sum[:]))
}

// Embed returns cached vectors where present and embeds the rest in one call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Embed",
		trace.WithAttributes(attribute.Int("texts.count", len(texts))))
	defer span.End()

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		v, err := c.cache.Get(ctx, c.key(t))
		if err == nil && len(v) == c.next.Dimension() {
			out[i] = v
			continue
		}
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("Embedding cache read failed", "error", err)
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}

	span.SetAttributes(
		attribute.Int("cache.hits", len(texts)-len(missing)),
		attribute.Int("cache.misses", len(missing)),
	)
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missing)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missing))
	}
	for j, v := range fresh {
		out[missingIdx[j]] = v
		if err := c.cache.Set(ctx, c.key(missing[j]), v, c.ttl); err != nil {
			c.logger.Warn("Embedding cache write failed", "error", err)
		}
	}
	return out, nil
}
