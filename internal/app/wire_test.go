package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chavalentas/Semantic-Search-Project/internal/config"
	"github.com/Chavalentas/Semantic-Search-Project/internal/embedding"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimension = 32
	cfg.Chunking.DedupScope = "global"
	return cfg
}

func TestNewEmbedder_Hash(t *testing.T) {
	e, err := NewEmbedder(testConfig())
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimension())
	assert.IsType(t, &embedding.HashEmbedder{}, e)
}

func TestNewEmbedder_OpenAIRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.Embedding.Provider = "openai"
	_, err := NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestWithQueryCache_Disabled(t *testing.T) {
	e := embedding.NewHashEmbedder(8)
	got, closeFn := WithQueryCache(context.Background(), testConfig(), e, slog.Default())
	assert.Same(t, e, got)
	assert.NoError(t, closeFn())
}

func TestChunkingOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Chunking.PoolSize = 2
	opts, err := ChunkingOptions(cfg)
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Chunking.DedupScope = "paragraph"
	_, err = ChunkingOptions(cfg)
	assert.Error(t, err)
}

func TestSourceClient_SendsAPIKey(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-api-key")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := SourceClient(config.SourceConfig{APIKey: "secret", RequestsPerSecond: 100})
	body, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "secret", got)
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
