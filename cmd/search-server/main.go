// Package main provides the paper search server: the JSON search API,
// health and metrics endpoints, and the MCP tools.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Chavalentas/Semantic-Search-Project/internal/api"
	"github.com/Chavalentas/Semantic-Search-Project/internal/app"
	"github.com/Chavalentas/Semantic-Search-Project/internal/config"
	mcpserver "github.com/Chavalentas/Semantic-Search-Project/internal/mcp"
	"github.com/Chavalentas/Semantic-Search-Project/internal/metrics"
	"github.com/Chavalentas/Semantic-Search-Project/internal/search"
)

var version = "dev"

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// stdout carries the MCP stream in stdio mode
	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)

	shutdownTracing, err := app.InitTracing(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	store, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer store.Close()

	if err := store.EnsurePapers(ctx); err != nil {
		log.Fatalf("failed to ensure papers collection: %v", err)
	}

	base, err := app.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	embedder, closeCache := app.WithQueryCache(ctx, cfg, base, logger)
	defer closeCache()

	m := metrics.New()
	svc := search.NewService(search.Config{
		Store:     store,
		Embedder:  embedder,
		Dimension: cfg.Embedding.Dimension,
		Metrics:   m,
		Logger:    logger,
	})

	server := mcpserver.NewServer(&mcpserver.Config{
		Search:  svc,
		Storage: store,
		Version: version,
	})

	router, err := api.NewRouter(api.Config{
		Search:      svc,
		Health:      store,
		Metrics:     m,
		Logger:      logger,
		ServiceName: cfg.Tracing.ServiceName,
		MCP:         mcpserver.NewHTTPHandler(server, nil),
	})
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.Mode == "stdio" {
		// Stdio mode: run MCP over stdin/stdout for local clients and keep
		// the HTTP endpoints up in the background
		go func() {
			logger.Info("Starting HTTP server", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		logger.Info("Starting paper search MCP server (stdio mode)")
		if err := server.Run(ctx); err != nil {
			logger.Error("MCP server error", "error", err)
			os.Exit(1)
		}
		shutdown(httpServer, logger)
		return
	}

	go func() {
		<-ctx.Done()
		shutdown(httpServer, logger)
	}()

	logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
}
