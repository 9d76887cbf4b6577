package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SearchRequest represents a full-text search with optional filters and paging.
type SearchRequest struct {
	Query      string     `json:"query"`
	Limit      *int       `json:"limit,omitempty"`  // nil means default; 0 means unbounded
	Offset     *int       `json:"offset,omitempty"` // nil means 0
	Page       int        `json:"page,omitempty"`   // > 0 switches to page mode
	PageSize   int        `json:"page_size,omitempty"`
	OnlyTypes  []string   `json:"only_types,omitempty"`
	ParentKeys ParentKeys `json:"parent_key"` // null means no filter; [] matches nothing
	Hydrate    *bool      `json:"hydrate,omitempty"` // defaults to true
}

// Paged reports whether the request asks for page-based results.
func (r *SearchRequest) Paged() bool {
	return r.Page > 0
}

// Hydrated reports whether full records should be returned instead of references.
func (r *SearchRequest) Hydrated() bool {
	return r.Hydrate == nil || *r.Hydrate
}

// Int returns a pointer to v, for the optional request fields.
func Int(v int) *int {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// ParentKeys is a parent-key filter. Nil means no filter; a non-nil empty set matches nothing.
// In JSON it accepts a single number, a numeric string, or an array of either.
type ParentKeys []int64

// UnmarshalJSON integer-coerces scalars and arrays.
func (p *ParentKeys) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		keys := make(ParentKeys, 0, len(raw))
		for _, r := range raw {
			k, err := coerceParentKey(r)
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
		*p = keys
		return nil
	}
	k, err := coerceParentKey(data)
	if err != nil {
		return err
	}
	*p = ParentKeys{k}
	return nil
}

func coerceParentKey(data json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case json.Number:
		if k, err := n.Int64(); err == nil {
			return k, nil
		}
		f, err := n.Float64()
		if err != nil || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("parent key %s is out of range", n)
		}
		return int64(f), nil
	case string:
		k, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parent key %q is not an integer", n)
		}
		return k, nil
	default:
		return 0, fmt.Errorf("parent key must be a number, got %s", string(data))
	}
}
