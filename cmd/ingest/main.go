// Package main provides the ingest CLI that fills the paper store and
// builds the chunk indexes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Chavalentas/Semantic-Search-Project/internal/app"
	"github.com/Chavalentas/Semantic-Search-Project/internal/config"
	"github.com/Chavalentas/Semantic-Search-Project/internal/indexer"
	"github.com/Chavalentas/Semantic-Search-Project/internal/source"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

const envHelp = `
Environment variables:
  QDRANT_HOST                Qdrant hostname (default: localhost)
  QDRANT_PORT                Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY             Qdrant API key (optional)
  OPENAI_API_KEY             OpenAI API key, required when EMBEDDING_PROVIDER=openai
  EMBEDDING_PROVIDER         openai or hash (default: openai)
  EMBEDDING_DIMENSION        Vector length (default: 384)
  SOURCES_SCHOLAR_API_KEY    Semantic Scholar API key (optional)
  LOG_LEVEL                  debug, info, warn or error (default: info)
  TRACING_ENABLED            Export spans over OTLP gRPC (default: false)
  TRACING_ENDPOINT           OTLP collector address (default: localhost:4317)`

var (
	configPath string

	query                 string
	target                int
	amount                int
	batch                 int
	maximum               int
	reset                 bool
	excludeEmptyTitles    bool
	excludeEmptyAbstracts bool
	field                 string
	sourceName            string
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Paper ingestion and indexing tool",
	Long:  "CLI tool for loading bibliographic records into Qdrant and building the sentence indexes.",
}

var arxivCmd = &cobra.Command{
	Use:   "arxiv",
	Short: "Load papers from the arXiv Atom API",
	Long: `Fetches papers from arXiv page by page, prepares them and stores them
in the papers collection.` + envHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			pager, err := arxivPager(e.cfg)
			if err != nil {
				return err
			}
			return ingest(ctx, e, pager)
		})
	},
}

var scholarCmd = &cobra.Command{
	Use:   "scholar",
	Short: "Load papers from the Semantic Scholar bulk search API",
	Long: `Fetches papers from Semantic Scholar following continuation tokens,
prepares them and stores them in the papers collection.` + envHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			return ingest(ctx, e, scholarPager(e.cfg))
		})
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Build the sentence or title index from stored papers",
	Long: `Splits stored papers into chunks, embeds them, loads the chunk
collection and provisions the vector search index.

--field accepts title, abstract or all.` + envHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(field)
		if err != nil {
			return err
		}
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			return index(ctx, e, fields)
		})
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Ingest papers and build both indexes",
	Long: `Runs the whole ingestion pipeline:
1. Fetch and prepare papers from the selected source
2. Load them into the papers collection
3. Build the title index
4. Build the abstract sentence index` + envHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			var pager source.Pager
			switch sourceName {
			case "arxiv":
				p, err := arxivPager(e.cfg)
				if err != nil {
					return err
				}
				pager = p
			case "scholar":
				pager = scholarPager(e.cfg)
			default:
				return fmt.Errorf("unknown source %q, expected arxiv or scholar", sourceName)
			}
			if err := ingest(ctx, e, pager); err != nil {
				return err
			}
			return index(ctx, e, []storage.Field{storage.FieldTitle, storage.FieldAbstract})
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")

	for _, c := range []*cobra.Command{arxivCmd, scholarCmd, allCmd} {
		c.Flags().StringVar(&query, "query", "", "search query sent to the source (required)")
		c.Flags().IntVar(&target, "target", 1000, "number of raw records to fetch")
		c.Flags().IntVar(&amount, "amount", 0, "number of papers to keep after preparation (0 keeps up to target)")
		c.Flags().BoolVar(&reset, "reset", false, "drop every collection before loading")
		c.Flags().BoolVar(&excludeEmptyTitles, "exclude-empty-titles", true, "drop records without a title")
		c.Flags().BoolVar(&excludeEmptyAbstracts, "exclude-empty-abstracts", true, "drop records without an abstract")
		_ = c.MarkFlagRequired("query")
	}
	for _, c := range []*cobra.Command{arxivCmd, allCmd} {
		c.Flags().IntVar(&batch, "batch", 0, "arXiv page size (0 uses the configured value)")
		c.Flags().IntVar(&maximum, "maximum", 0, "arXiv result cap (0 uses the configured value)")
	}
	allCmd.Flags().StringVar(&sourceName, "source", "arxiv", "record source: arxiv or scholar")
	chunksCmd.Flags().StringVar(&field, "field", "all", "field to index: title, abstract or all")

	rootCmd.AddCommand(arxivCmd, scholarCmd, chunksCmd, allCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env holds the services a subcommand runs against.
type env struct {
	cfg      *config.Config
	store    *storage.QdrantStorage
	pipeline *indexer.Pipeline
	logger   *slog.Logger
}

func withEnv(ctx context.Context, fn func(context.Context, *env) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)

	shutdownTracing, err := app.InitTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.Qdrant.Host, cfg.Qdrant.Port)
	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Println("Qdrant healthy")

	embedder, err := app.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	chunkOpts, err := app.ChunkingOptions(cfg)
	if err != nil {
		return err
	}
	pipeline, err := indexer.NewPipeline(store, embedder, nil, cfg.Embedding.Dimension, cfg.Loader.BatchSize, logger, chunkOpts...)
	if err != nil {
		return err
	}

	return fn(ctx, &env{cfg: cfg, store: store, pipeline: pipeline, logger: logger})
}

func arxivPager(cfg *config.Config) (*source.ArxivPager, error) {
	sc := cfg.Sources.Arxiv
	size, limit := sc.BatchSize, sc.Maximum
	if batch > 0 {
		size = batch
	}
	if maximum > 0 {
		limit = maximum
	}
	return source.NewArxivPager(app.SourceClient(sc), sc.URL, query, size, limit)
}

func scholarPager(cfg *config.Config) *source.ScholarPager {
	sc := cfg.Sources.Scholar
	return source.NewScholarPager(app.SourceClient(sc), sc.URL, query)
}

func parseFields(s string) ([]storage.Field, error) {
	switch s {
	case "title":
		return []storage.Field{storage.FieldTitle}, nil
	case "abstract":
		return []storage.Field{storage.FieldAbstract}, nil
	case "all":
		return []storage.Field{storage.FieldTitle, storage.FieldAbstract}, nil
	}
	return nil, fmt.Errorf("unknown field %q, expected title, abstract or all", s)
}

func ingest(ctx context.Context, e *env, pager source.Pager) error {
	if reset {
		fmt.Println()
		fmt.Println("Dropping existing collections...")
		if err := e.store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		fmt.Println("Collections dropped")
	}

	fmt.Println()
	fmt.Printf("Fetching papers from %s...\n", pager.Name())
	result, err := e.pipeline.IngestPapers(ctx, pager, indexer.IngestOptions{
		Target:                target,
		Amount:                amount,
		ExcludeEmptyTitles:    excludeEmptyTitles,
		ExcludeEmptyAbstracts: excludeEmptyAbstracts,
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Fetched:  %d\n", result.Fetched)
	fmt.Printf("  Prepared: %d\n", result.Prepared)
	fmt.Printf("  Inserted: %d\n", result.Inserted)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	return nil
}

func index(ctx context.Context, e *env, fields []storage.Field) error {
	for _, f := range fields {
		fmt.Println()
		fmt.Printf("Indexing %s chunks...\n", f)
		result, err := e.pipeline.IndexChunks(ctx, f)
		if err != nil {
			return fmt.Errorf("indexing %s failed: %w", f, err)
		}
		fmt.Printf("  Papers:     %d\n", result.Papers)
		fmt.Printf("  Sentences:  %d\n", result.Sentences)
		fmt.Printf("  Duplicates: %d\n", result.Duplicates)
		fmt.Printf("  Chunks:     %d\n", result.Chunks)
		fmt.Printf("  Duration:   %s\n", result.Duration.Round(time.Millisecond))
	}
	return nil
}
