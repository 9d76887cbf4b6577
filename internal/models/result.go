package models

// Hit is one ranked search result. Record is nil for reference-mode searches.
type Hit struct {
	Type      string      `json:"type"`
	ID        int64       `json:"id"`
	Relevance float64     `json:"relevance"`
	Record    interface{} `json:"record,omitempty"`
}

// Results is the ordered response for a search request.
type Results struct {
	Hits  []*Hit `json:"hits"`
	Query string `json:"query"`
	// Skipped counts ranked rows dropped because their source record no longer exists.
	Skipped   int   `json:"skipped,omitempty"`
	QueryTime int64 `json:"query_time_ms"`

	Paginated    bool  `json:"paginated,omitempty"`
	CurrentPage  int   `json:"current_page,omitempty"`
	PerPage      int   `json:"per_page,omitempty"`
	TotalEntries int64 `json:"total_entries,omitempty"`
}

// TotalPages returns the number of pages for a paginated result, or 0 when not paginated.
func (r *Results) TotalPages() int {
	if !r.Paginated || r.PerPage <= 0 {
		return 0
	}
	return int((r.TotalEntries + int64(r.PerPage) - 1) / int64(r.PerPage))
}

// References returns the (type, id) pairs of the hits in rank order.
func (r *Results) References() [][2]interface{} {
	refs := make([][2]interface{}, len(r.Hits))
	for i, h := range r.Hits {
		refs[i] = [2]interface{}{h.Type, h.ID}
	}
	return refs
}

// Records returns the hydrated records in rank order.
func (r *Results) Records() []interface{} {
	out := make([]interface{}, 0, len(r.Hits))
	for _, h := range r.Hits {
		if h.Record != nil {
			out = append(out, h.Record)
		}
	}
	return out
}
