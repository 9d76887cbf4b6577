// Package models defines core data structures for index rows, search requests, and search results.
package models

// MaxTypeLength is the widest type tag the index row store accepts.
const MaxTypeLength = 50

// Row is the flattened, searchable projection of one source record.
type Row struct {
	ID         int64   `json:"id" db:"id"`
	SourceType string  `json:"type" db:"fulltextable_type"`
	SourceID   int64   `json:"source_id" db:"fulltextable_id"`
	Value      string  `json:"value" db:"value"`
	ParentID   *int64  `json:"parent_id,omitempty" db:"parent_id"`
	Relevance  float64 `json:"relevance,omitempty" db:"-"`
}

// Entry is what a Text Extractor produces for a single source record.
type Entry struct {
	Type     string `json:"type"`
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// Row converts the entry into an unsaved index row.
func (e Entry) Row() *Row {
	return &Row{
		SourceType: e.Type,
		SourceID:   e.ID,
		Value:      e.Text,
		ParentID:   e.ParentID,
	}
}

// SameParent reports whether two optional parent keys are equal.
func SameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
