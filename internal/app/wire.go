// Package app builds the process-wide services shared by the binaries
// from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chavalentas/Semantic-Search-Project/internal/chunking"
	"github.com/Chavalentas/Semantic-Search-Project/internal/config"
	"github.com/Chavalentas/Semantic-Search-Project/internal/embedding"
	"github.com/Chavalentas/Semantic-Search-Project/internal/source"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
	"github.com/Chavalentas/Semantic-Search-Project/internal/tracing"
)

// OpenStore connects to Qdrant and verifies it is healthy.
func OpenStore(cfg *config.Config) (*storage.QdrantStorage, error) {
	store, err := storage.NewQdrantStorage(storage.QdrantConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return store, nil
}

// NewEmbedder returns the configured embedding backend.
func NewEmbedder(cfg *config.Config) (embedding.Source, error) {
	switch cfg.Embedding.Provider {
	case "hash":
		return embedding.NewHashEmbedder(cfg.Embedding.Dimension), nil
	case "openai":
		client, err := embedding.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		return embedding.NewEmbedder(client, cfg.OpenAI.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
}

// WithQueryCache wraps embedder with the Redis vector cache when enabled.
// An unreachable Redis disables caching with a warning. The returned
// close function is never nil.
func WithQueryCache(ctx context.Context, cfg *config.Config, embedder embedding.Source, logger *slog.Logger) (embedding.Source, func() error) {
	noop := func() error { return nil }
	if !cfg.Redis.Enabled {
		return embedder, noop
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, query embedding cache disabled", "addr", cfg.Redis.Addr, "error", err)
		_ = rdb.Close()
		return embedder, noop
	}

	logger.Info("Query embedding cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	cache := embedding.NewRedisCache(rdb, cfg.Redis.Prefix+":")
	return embedding.NewCachedEmbedder(embedder, cache, cfg.Redis.TTL, logger), rdb.Close
}

// ChunkingOptions translates the chunking section of cfg.
func ChunkingOptions(cfg *config.Config) ([]chunking.Option, error) {
	scope, err := chunking.ParseDedupScope(cfg.Chunking.DedupScope)
	if err != nil {
		return nil, err
	}
	opts := []chunking.Option{
		chunking.WithDedupScope(scope),
		chunking.WithBatchSize(cfg.Chunking.BatchSize),
	}
	if cfg.Chunking.PoolSize > 0 {
		opts = append(opts, chunking.WithPoolSize(cfg.Chunking.PoolSize))
	}
	return opts, nil
}

// SourceClient builds the throttled HTTP client of one source.
func SourceClient(sc config.SourceConfig) *source.HTTPClient {
	opts := source.DefaultClientOptions()
	if sc.RequestsPerSecond > 0 {
		opts.RequestsPerSecond = sc.RequestsPerSecond
	}
	if sc.MaxRetries > 0 {
		opts.MaxRetries = sc.MaxRetries
	}
	if sc.APIKey != "" {
		opts.Header = http.Header{}
		opts.Header.Set("x-api-key", sc.APIKey)
	}
	return source.NewHTTPClient(opts)
}

// InitTracing installs the span exporter described by the tracing section.
func InitTracing(ctx context.Context, cfg *config.Config) (tracing.Shutdown, error) {
	return tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
}
