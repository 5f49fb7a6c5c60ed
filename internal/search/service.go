// Package search implements lexical and semantic retrieval over the
// stored paper corpus.
package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Chavalentas/Semantic-Search-Project/internal/chunking"
	"github.com/Chavalentas/Semantic-Search-Project/internal/metrics"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

var tracer = otel.Tracer("search")

// Operation names, used as metric labels and log fields.
const (
	OpTitleSemantic    = "title_semantic"
	OpTitleLexical     = "title_lexical"
	OpAbstractSemantic = "abstract_semantic"
	OpAbstractLexical  = "abstract_lexical"
)

// Service validates queries and dispatches them to the rankers.
type Service struct {
	lexical  *LexicalRanker
	semantic *SemanticComposer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Config holds service dependencies. Metrics and Logger are optional.
type Config struct {
	Store        storage.Store
	Embedder     Embedder
	Preprocessor *chunking.Preprocessor
	Dimension    int
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// NewService wires the rankers from cfg.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	semantic := NewSemanticComposer(cfg.Store, cfg.Embedder, cfg.Preprocessor, cfg.Dimension, logger)
	if cfg.Metrics != nil {
		semantic.onOrphan = func(storage.Chunk) { cfg.Metrics.OrphanChunks.Inc() }
	}
	return &Service{
		lexical:  NewLexicalRanker(cfg.Store),
		semantic: semantic,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Validate checks the request constraints shared by all operations.
func Validate(query string, amount int) error {
	if query == "" {
		return ErrEmptyQuery
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (s *Service) observe(op string, start time.Time, results int, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	default:
		s.metrics.QueryResults.WithLabelValues(op).Observe(float64(results))
	}
	s.metrics.QueriesTotal.WithLabelValues(op, outcome).Inc()
	s.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func run[T any](ctx context.Context, s *Service, op, query string, amount int, fn func(context.Context) ([]T, error)) (res []T, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "search."+op)
	span.SetAttributes(attribute.Int("query.amount", amount))
	defer func() {
		s.observe(op, start, len(res), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if !errors.Is(err, ErrValidation) {
				s.logger.Error("Query failed", "operation", op, "error", err)
			}
		} else {
			span.SetAttributes(attribute.Int("results.count", len(res)))
		}
		span.End()
	}()

	if err := Validate(query, amount); err != nil {
		return nil, err
	}
	return fn(ctx)
}

// TitleSemantic returns the papers with the semantically closest titles.
func (s *Service) TitleSemantic(ctx context.Context, query string, amount int) ([]storage.Paper, error) {
	return run(ctx, s, OpTitleSemantic, query, amount, func(ctx context.Context) ([]storage.Paper, error) {
		return s.semantic.Titles(ctx, query, amount)
	})
}

// TitleLexical ranks papers by occurrences of query in their titles.
func (s *Service) TitleLexical(ctx context.Context, query string, amount int) ([]storage.Paper, error) {
	return run(ctx, s, OpTitleLexical, query, amount, func(ctx context.Context) ([]storage.Paper, error) {
		return s.lexical.Rank(ctx, query, amount, storage.FieldTitle)
	})
}

// AbstractSemantic returns papers with their semantically closest abstract sentences.
func (s *Service) AbstractSemantic(ctx context.Context, query string, amount int) ([]storage.PaperChunks, error) {
	return run(ctx, s, OpAbstractSemantic, query, amount, func(ctx context.Context) ([]storage.PaperChunks, error) {
		return s.semantic.Abstracts(ctx, query, amount)
	})
}

// AbstractLexical ranks papers by occurrences of query in their abstracts.
func (s *Service) AbstractLexical(ctx context.Context, query string, amount int) ([]storage.Paper, error) {
	return run(ctx, s, OpAbstractLexical, query, amount, func(ctx context.Context) ([]storage.Paper, error) {
		return s.lexical.Rank(ctx, query, amount, storage.FieldAbstract)
	})
}
