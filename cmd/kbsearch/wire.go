package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/knoguchi/kbsearch/internal/catalog"
	"github.com/knoguchi/kbsearch/internal/config"
	"github.com/knoguchi/kbsearch/internal/dify"
	"github.com/knoguchi/kbsearch/internal/embedder"
	"github.com/knoguchi/kbsearch/internal/httpclient"
	"github.com/knoguchi/kbsearch/internal/llm"
	"github.com/knoguchi/kbsearch/internal/report"
	"github.com/knoguchi/kbsearch/internal/repository"
	"github.com/knoguchi/kbsearch/internal/repository/file"
	"github.com/knoguchi/kbsearch/internal/repository/postgres"
	"github.com/knoguchi/kbsearch/internal/reranker"
	"github.com/knoguchi/kbsearch/internal/service"
)

// components is the assembled pipeline.
type components struct {
	dify    *dify.Client
	catalog *catalog.Catalog
	search  *service.SearchService

	// ready is nil unless a backing store can become unreachable.
	ready func(ctx context.Context) error
	close func()
}

func (c *cli) build(ctx context.Context) (*components, error) {
	cfg := c.cfg

	client := dify.NewClient(dify.Config{
		BaseURL: cfg.DifyBaseURL,
		APIKey:  cfg.DifyAPIKey,
		Timeout: cfg.DifyTimeout,
		Retrieval: &dify.RetrievalDefaults{
			TopK:                  cfg.RetrievalTopK,
			ScoreThresholdEnabled: cfg.RetrievalScoreThresholdEnabled,
			ScoreThreshold:        cfg.RetrievalScoreThreshold,
			Weights:               cfg.RetrievalWeights,
		},
		RateLimit: cfg.RetrievalRateLimit,
		Logger:    c.logger,
	})

	comp := &components{dify: client, close: func() {}}

	var repo repository.DatasetRepository
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		c.logger.Info("connected to PostgreSQL")
		repo = postgres.NewDatasetRepo(db)
		comp.ready = db.Pool.Ping
		comp.close = db.Close
	} else {
		repo = file.NewDatasetRepo(cfg.CatalogFile)
	}

	cat, err := catalog.New(client, repo, cfg.CatalogCacheSize,
		catalog.WithLogger(c.logger),
		catalog.WithListLimit(dify.DefaultListLimit))
	if err != nil {
		comp.close()
		return nil, err
	}
	comp.catalog = cat

	opts := []service.SearchServiceOption{
		service.WithResolver(cat),
		service.WithConcurrency(cfg.SearchConcurrency),
		service.WithLogger(c.logger),
	}
	if scorer := c.newScorer(); scorer != nil {
		opts = append(opts, service.WithReranker(reranker.New(scorer, reranker.WithLogger(c.logger))))
		c.logger.Debug("reranker configured",
			"provider", cfg.RerankProvider,
			"model", scorer.ModelName())
	}
	comp.search = service.NewSearchService(client, opts...)

	return comp, nil
}

// newScorer returns the configured scorer, or nil when reranking is disabled.
func (c *cli) newScorer() reranker.Scorer {
	cfg := c.cfg
	switch cfg.RerankProvider {
	case config.RerankProviderHTTP:
		return reranker.NewHTTPScorer(cfg.RerankURL, cfg.RerankModel, cfg.RerankTimeout, c.logger, nil)
	case config.RerankProviderLLM:
		ollama := llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.OllamaLLMModel),
			llm.WithHTTPClient(httpclient.NewPooledClient(cfg.RerankTimeout)),
		)
		return reranker.NewLLMScorer(ollama, reranker.WithModel(cfg.OllamaLLMModel))
	case config.RerankProviderEmbedding:
		return reranker.NewEmbeddingScorer(embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
			Timeout: cfg.RerankTimeout,
		}))
	default:
		return nil
	}
}

func (c *cli) printer() (*report.Printer, error) {
	format, err := report.ParseFormat(c.format)
	if err != nil {
		return nil, err
	}
	return report.NewPrinter(c.stdout, format, !c.noColor && !color.NoColor), nil
}
