// Package server exposes the search pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/knoguchi/kbsearch/internal/repository"
	"github.com/knoguchi/kbsearch/internal/service"
)

// Searcher runs a query against several datasets.
type Searcher interface {
	Run(ctx context.Context, query string, datasetIDs []string, opts service.SearchOptions) ([]service.DatasetReport, error)
}

// DatasetCatalog lists and refreshes the known datasets.
type DatasetCatalog interface {
	List(ctx context.Context) ([]*repository.Dataset, error)
	Refresh(ctx context.Context) ([]*repository.Dataset, error)
}

// Services holds the dependencies served over HTTP.
type Services struct {
	Search   Searcher
	Datasets DatasetCatalog

	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type searchRequest struct {
	Query       string   `json:"query"`
	DatasetIDs  []string `json:"dataset_ids"`
	Rerank      bool     `json:"rerank"`
	RerankLimit int      `json:"rerank_limit"`
}

type datasetsResponse struct {
	Datasets []*repository.Dataset `json:"datasets"`
}

type handlers struct {
	search             Searcher
	datasets           DatasetCatalog
	logger             *slog.Logger
	defaultRerankLimit int
	maxBodyBytes       int64
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RerankLimit < 0 {
		writeError(w, http.StatusBadRequest, "rerank_limit must not be negative")
		return
	}
	if req.RerankLimit == 0 {
		req.RerankLimit = h.defaultRerankLimit
	}

	runID := uuid.New().String()
	reports, err := h.search.Run(r.Context(), req.Query, req.DatasetIDs, service.SearchOptions{
		Rerank:      req.Rerank,
		RerankLimit: req.RerankLimit,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("search failed",
			slog.String("run_id", runID),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, service.RunReport{
		RunID:   runID,
		Query:   strings.TrimSpace(req.Query),
		Reports: reports,
	})
}

func (h *handlers) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.datasets.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list datasets", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, datasetsResponse{Datasets: nonNil(datasets)})
}

func (h *handlers) handleRefreshDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.datasets.Refresh(r.Context())
	if err != nil {
		h.logger.Error("failed to refresh datasets", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, datasetsResponse{Datasets: nonNil(datasets)})
}

func nonNil(datasets []*repository.Dataset) []*repository.Dataset {
	if datasets == nil {
		return []*repository.Dataset{}
	}
	return datasets
}
