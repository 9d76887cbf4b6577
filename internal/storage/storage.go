// Package storage defines the index row store and its full-text backends.
package storage

import (
	"context"

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/query"
)

// Storage persists index rows and runs ranked full-text queries over them.
type Storage interface {
	// Row operations
	Create(ctx context.Context, row *models.Row) error
	Get(ctx context.Context, sourceType string, sourceID int64) (*models.Row, error)
	Update(ctx context.Context, row *models.Row) error
	Delete(ctx context.Context, sourceType string, sourceID int64) error

	// Search returns rows ordered by relevance descending, then value ascending.
	Search(ctx context.Context, q *query.Query) ([]*models.Row, error)
	// Count returns the number of rows matching q, ignoring its limit and offset.
	Count(ctx context.Context, q *query.Query) (int64, error)

	// Stats
	CountRows(ctx context.Context) (int64, error)

	Close() error
}
