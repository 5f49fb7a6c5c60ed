// Package api exposes the search service over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/Chavalentas/Semantic-Search-Project/internal/metrics"
)

// Config holds the router's dependencies. Everything but Search and
// Health is optional.
type Config struct {
	Search  Searcher
	Health  HealthChecker
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// ServiceName names the server in request spans.
	ServiceName    string
	TracerProvider trace.TracerProvider
	// MCP, when set, is mounted at /mcp for every method.
	MCP http.Handler
}

// NewRouter builds the gin engine with all routes.
func NewRouter(cfg Config) (*gin.Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "paper-search"
	}

	engine := gin.New()
	engine.Use(Recovery(logger), Trace(serviceName, cfg.TracerProvider), Logger(logger))
	if cfg.Metrics != nil {
		engine.Use(Metrics(cfg.Metrics))
	}

	landing, err := NewLandingHandler()
	if err != nil {
		return nil, err
	}
	engine.GET("/", landing)
	engine.GET("/health", NewHealthHandler(cfg.Health))
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.MCP != nil {
		engine.Any("/mcp", gin.WrapH(cfg.MCP))
	}

	h := NewSearchHandler(cfg.Search)
	title := engine.Group("/title")
	{
		title.POST("/search", h.TitleSearch)
		title.POST("/searchlex", h.TitleSearchLex)
	}
	abstract := engine.Group("/abstract")
	{
		abstract.POST("/search", h.AbstractSearch)
		abstract.POST("/searchlex", h.AbstractSearchLex)
	}

	return engine, nil
}
