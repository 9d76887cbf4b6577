package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/source"
	"github.com/hyperjump/fulltextable/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reassembler turns ranked index rows into ranked hits.
type Reassembler struct {
	registry    *source.Registry
	strict      bool
	concurrency int
	logger      *zap.Logger
}

// NewReassembler creates a reassembler. With strict set, a row whose record cannot
// be loaded fails the whole call; otherwise the row is skipped and counted.
func NewReassembler(registry *source.Registry, strict bool, concurrency int, logger *zap.Logger) *Reassembler {
	if registry == nil {
		registry = source.NewRegistry()
	}
	return &Reassembler{registry: registry, strict: strict, concurrency: concurrency, logger: utils.OrNop(logger)}
}

// References returns one (type, id) hit per row, in row order.
func References(rows []*models.Row) []*models.Hit {
	hits := make([]*models.Hit, len(rows))
	for i, row := range rows {
		hits[i] = &models.Hit{Type: row.SourceType, ID: row.SourceID, Relevance: row.Relevance}
	}
	return hits
}

// typeBatch is the set of ids to load for one source type.
type typeBatch struct {
	name    string
	ids     []int64
	records map[int64]interface{}
}

// Hydrate loads the records behind rows with one bulk lookup per type and returns
// them in row order, along with the number of rows skipped as dangling.
func (r *Reassembler) Hydrate(ctx context.Context, rows []*models.Row) ([]*models.Hit, int, error) {
	batches := partition(rows)

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, b := range batches {
		typ, err := r.registry.Lookup(b.name)
		if err != nil {
			// Unregistered type: every row of it is dangling.
			continue
		}
		g.Go(func() error {
			records, err := typ.Find(gctx, b.ids)
			if err != nil {
				return fmt.Errorf("failed to load %s records: %w", b.name, err)
			}
			b.records = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	byType := make(map[string]*typeBatch, len(batches))
	for _, b := range batches {
		byType[b.name] = b
	}

	hits := make([]*models.Hit, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, ok := byType[row.SourceType].records[row.SourceID]
		if !ok {
			if r.strict {
				return nil, skipped, &models.DanglingReferenceError{Type: row.SourceType, ID: row.SourceID}
			}
			r.logger.Warn("skipping dangling index row",
				zap.String("type", row.SourceType), zap.Int64("id", row.SourceID))
			skipped++
			continue
		}
		hits = append(hits, &models.Hit{
			Type:      row.SourceType,
			ID:        row.SourceID,
			Relevance: row.Relevance,
			Record:    rec,
		})
	}
	return hits, skipped, nil
}

// partition groups row ids by type, keeping first-seen order for both.
func partition(rows []*models.Row) []*typeBatch {
	var batches []*typeBatch
	index := make(map[string]*typeBatch)
	for _, row := range rows {
		b, ok := index[row.SourceType]
		if !ok {
			b = &typeBatch{name: row.SourceType}
			index[row.SourceType] = b
			batches = append(batches, b)
		}
		b.ids = append(b.ids, row.SourceID)
	}
	return batches
}
