// Package cli provides CLI utilities for fulltextable.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/fulltextable/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json" (case-insensitive).
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, results *models.Results, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	default:
		writeSearchResultsText(w, results)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, results *models.Results) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n", len(results.Hits), results.Query, results.QueryTime)
	if results.Paginated {
		fmt.Fprintf(w, "Page %d of %d (%d per page, %d total)\n",
			results.CurrentPage, results.TotalPages(), results.PerPage, results.TotalEntries)
	}
	if results.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d rows whose records no longer exist\n", results.Skipped)
	}
	fmt.Fprintln(w)
	for i, hit := range results.Hits {
		writeOneHit(w, i+1, hit)
	}
}

func writeOneHit(w io.Writer, rank int, hit *models.Hit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Relevance: %.4f | %s #%d\n", rank, hit.Relevance, hit.Type, hit.ID)
	if hit.Record != nil {
		fmt.Fprintf(w, "\n%s\n", Truncate(Describe(hit.Record), 200))
	}
	fmt.Fprintln(w)
}

// Describe renders a record for display: its String method when it has one, JSON otherwise.
func Describe(record interface{}) string {
	if s, ok := record.(fmt.Stringer); ok {
		return s.String()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Sprintf("%v", record)
	}
	return string(data)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
