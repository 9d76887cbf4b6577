// Package search runs full-text queries and reassembles ranked results.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/fulltextable/internal/config"
	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/query"
	"github.com/hyperjump/fulltextable/internal/source"
	"github.com/hyperjump/fulltextable/internal/storage"
	"go.uber.org/zap"
)

// Engine answers search requests from the index row store.
type Engine struct {
	storage     storage.Storage
	builder     *query.Builder
	reassembler *Reassembler
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query and reassembly events.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine with the given dependencies. cfg may be nil for defaults.
func NewEngine(store storage.Storage, registry *source.Registry, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{}
	}
	e := &Engine{storage: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.builder = query.NewBuilder(
		query.WithDefaultLimit(cfg.DefaultLimit),
		query.WithDefaultPageSize(cfg.DefaultPageSize),
		query.WithLogger(e.logger),
	)
	e.reassembler = NewReassembler(registry, cfg.StrictReferences, cfg.HydrateConcurrency, e.logger)
	return e
}

// Search runs req and returns ranked hits, hydrated unless req asks for references.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.Results, error) {
	startTime := time.Now()
	q, err := e.builder.Build(req)
	if err != nil {
		return nil, err
	}

	rows, err := e.storage.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := &models.Results{Query: req.Query}
	if req.Hydrated() {
		results.Hits, results.Skipped, err = e.reassembler.Hydrate(ctx, rows)
		if err != nil {
			return nil, err
		}
	} else {
		results.Hits = References(rows)
	}

	if q.Paged {
		total, err := e.storage.Count(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("count failed: %w", err)
		}
		results.Paginated = true
		results.CurrentPage = q.Page
		results.PerPage = q.PageSize
		results.TotalEntries = total
	}

	results.QueryTime = time.Since(startTime).Milliseconds()
	e.logger.Debug("search complete",
		zap.String("query", req.Query),
		zap.Int("rows", len(rows)),
		zap.Int("hits", len(results.Hits)),
		zap.Int("skipped", results.Skipped))
	return results, nil
}

// SearchType runs req restricted to a single source type.
func (e *Engine) SearchType(ctx context.Context, sourceType string, req *models.SearchRequest) (*models.Results, error) {
	scoped := *req
	scoped.OnlyTypes = []string{sourceType}
	return e.Search(ctx, &scoped)
}
