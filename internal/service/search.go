// Package service runs a query against several knowledge datasets, isolating each
// dataset's failures, and optionally reranks each dataset's results.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/knoguchi/kbsearch/internal/dify"
	"github.com/knoguchi/kbsearch/internal/repository"
	"github.com/knoguchi/kbsearch/internal/reranker"
	"github.com/knoguchi/kbsearch/internal/retrieval"
)

// DefaultConcurrency is the number of datasets queried at the same time.
const DefaultConcurrency = 4

// ErrEmptyQuery is returned when the query is blank after trimming.
var ErrEmptyQuery = errors.New("query is required")

// Retriever runs one hybrid search against one dataset. Errors are *retrieval.Error.
type Retriever interface {
	Retrieve(ctx context.Context, datasetID, query string) (*dify.RetrieveResult, error)
}

// Reranker reorders a dataset's results.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []retrieval.Result, maxResults int) reranker.Outcome
}

// DatasetResolver looks up dataset metadata by ID.
type DatasetResolver interface {
	Resolve(ctx context.Context, id string) (*repository.Dataset, error)
}

// SearchOptions controls a single run.
type SearchOptions struct {
	// Rerank must be set explicitly; results are left in retrieval order otherwise.
	Rerank bool

	// RerankLimit is how many leading results are reranked (default 20).
	RerankLimit int
}

// SearchService fans a query out to datasets and assembles one report per dataset.
type SearchService struct {
	retriever   Retriever
	reranker    Reranker
	resolver    DatasetResolver
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// SearchServiceOption is a functional option for configuring SearchService.
type SearchServiceOption func(*SearchService)

// WithReranker sets the reranker used when SearchOptions.Rerank is set.
func WithReranker(r Reranker) SearchServiceOption {
	return func(s *SearchService) {
		s.reranker = r
	}
}

// WithResolver adds dataset names to reports.
func WithResolver(r DatasetResolver) SearchServiceOption {
	return func(s *SearchService) {
		s.resolver = r
	}
}

// WithConcurrency bounds how many datasets are queried in parallel.
func WithConcurrency(n int) SearchServiceOption {
	return func(s *SearchService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService creates a new SearchService
func NewSearchService(retriever Retriever, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		retriever:   retriever,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/knoguchi/kbsearch/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run queries every dataset and returns one report per dataset ID, in the order given.
// A failing dataset yields a report carrying its error; it never affects the others.
// An empty dataset selection returns an empty list without any request.
func (s *SearchService) Run(ctx context.Context, query string, datasetIDs []string, opts SearchOptions) ([]DatasetReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(datasetIDs) == 0 {
		return []DatasetReport{}, nil
	}
	if opts.RerankLimit <= 0 {
		opts.RerankLimit = reranker.DefaultMaxResults
	}

	ctx, span := s.tracer.Start(ctx, "search.run", trace.WithAttributes(
		attribute.Int("search.dataset_count", len(datasetIDs)),
		attribute.Bool("search.rerank", opts.Rerank),
	))
	defer span.End()

	start := time.Now()
	reports := make([]DatasetReport, len(datasetIDs))

	// Tasks never return an error, so one dataset cannot cancel the rest.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range datasetIDs {
		g.Go(func() error {
			reports[i] = s.searchDataset(ctx, id, query, opts)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range reports {
		if r.Error != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("search.failed_count", failed))

	s.logger.Info("search completed",
		slog.Int("dataset_count", len(datasetIDs)),
		slog.Int("failed_count", failed),
		slog.Bool("rerank", opts.Rerank),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return reports, nil
}

func (s *SearchService) searchDataset(ctx context.Context, datasetID, query string, opts SearchOptions) DatasetReport {
	ctx, span := s.tracer.Start(ctx, "search.dataset", trace.WithAttributes(
		attribute.String("dataset.id", datasetID),
	))
	defer span.End()

	report := DatasetReport{
		DatasetID:   datasetID,
		DatasetName: s.datasetName(ctx, datasetID),
		Query:       query,
	}

	res, err := s.retriever.Retrieve(ctx, datasetID, query)
	if err != nil {
		report.Error = asRetrievalError(err)
		span.SetStatus(codes.Error, report.Error.Error())
		return report
	}

	report.Query = res.Query
	report.Results = retrieval.Normalize(res.Records)
	span.SetAttributes(attribute.Int("dataset.result_count", len(report.Results)))

	if !opts.Rerank {
		return report
	}
	if s.reranker == nil {
		s.logger.Warn("rerank requested but no reranker configured",
			slog.String("dataset_id", datasetID))
		return report
	}

	outcome := s.reranker.Rerank(ctx, query, report.Results, opts.RerankLimit)
	if outcome.Reranked {
		report.Reranked = true
		report.RerankModel = outcome.Model
		report.RerankedResults = outcome.Ranked
	}
	return report
}

// datasetName resolves a display name; lookup failures leave it empty.
func (s *SearchService) datasetName(ctx context.Context, id string) string {
	if s.resolver == nil {
		return ""
	}
	ds, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("dataset lookup failed", slog.String("dataset_id", id), slog.String("error", err.Error()))
		}
		return ""
	}
	return ds.Name
}

func asRetrievalError(err error) *retrieval.Error {
	var rerr *retrieval.Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return &retrieval.Error{Kind: retrieval.KindRequestFailed, Message: err.Error()}
}
