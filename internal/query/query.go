// Package query turns search requests into validated, backend-neutral full-text queries.
package query

import "github.com/hyperjump/fulltextable/internal/models"

// Query is a validated full-text query ready to be rendered by an index row store.
type Query struct {
	// Terms are the normalized search tokens; each one is matched as a word prefix.
	Terms []string
	// Types restricts rows to these source types. Nil means no restriction.
	Types []string
	// Parents restricts rows to these parent keys. Nil means no restriction.
	Parents []int64
	// Limit is the maximum number of rows; 0 means unbounded.
	Limit  int
	Offset int

	// Empty is set when a filter can never match (all type entries dropped, empty parent set).
	Empty bool
	// Dropped lists type filter entries that failed validation.
	Dropped []*models.InvalidFilterError

	Paged    bool
	Page     int
	PageSize int
}

// ParentEquality reports whether the parent restriction is a single-key equality.
func (q *Query) ParentEquality() bool {
	return len(q.Parents) == 1
}
