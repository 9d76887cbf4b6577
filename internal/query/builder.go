package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/fulltextable/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultLimit is used when no limit is given or a negative one is.
	DefaultLimit = 10
	// DefaultPageSize is used in page mode when no page size is given.
	DefaultPageSize = 30
)

var typePattern = regexp.MustCompile(`^\w+$`)

// ValidType reports whether s is safe to use as a source type tag.
func ValidType(s string) bool {
	return len(s) <= models.MaxTypeLength && typePattern.MatchString(s)
}

// Builder builds queries from search requests.
type Builder struct {
	defaultLimit    int
	defaultPageSize int
	logger          *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDefaultLimit overrides the limit used when none (or a negative one) is supplied.
func WithDefaultLimit(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.defaultLimit = n
		}
	}
}

// WithDefaultPageSize overrides the page size used in page mode.
func WithDefaultPageSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.defaultPageSize = n
		}
	}
}

// WithLogger sets a logger for dropped filter entries.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a query builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		defaultLimit:    DefaultLimit,
		defaultPageSize: DefaultPageSize,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates req and returns the query to run.
// It returns models.ErrInvalidQuery when the query string has no searchable terms.
func (b *Builder) Build(req *models.SearchRequest) (*Query, error) {
	terms := Tokenize(req.Query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: query %q has no searchable terms", models.ErrInvalidQuery, req.Query)
	}
	q := &Query{Terms: terms}

	if len(req.OnlyTypes) > 0 {
		q.Types, q.Dropped = FilterTypes(req.OnlyTypes)
		for _, d := range q.Dropped {
			b.logger.Warn("dropping invalid type filter", zap.String("value", d.Value))
		}
		// Every entry was rejected: match nothing rather than widening to all types.
		if len(q.Types) == 0 {
			q.Empty = true
		}
	}

	if req.ParentKeys != nil {
		q.Parents = uniqueKeys(req.ParentKeys)
		if len(q.Parents) == 0 {
			q.Empty = true
		}
	}

	if req.Paged() {
		size := req.PageSize
		if size <= 0 {
			size = b.defaultPageSize
		}
		// The page window (offset plus size) must fit in an int.
		if req.Page-1 > math.MaxInt/size-1 {
			return nil, fmt.Errorf("%w: page %d is out of range", models.ErrInvalidQuery, req.Page)
		}
		q.Paged = true
		q.Page = req.Page
		q.PageSize = size
		q.Limit = size
		q.Offset = (req.Page - 1) * size
		return q, nil
	}

	q.Limit = b.defaultLimit
	if req.Limit != nil {
		switch {
		case *req.Limit == 0:
			q.Limit = 0
		case *req.Limit > 0:
			q.Limit = *req.Limit
		}
	}
	if req.Offset != nil && *req.Offset > 0 {
		q.Offset = *req.Offset
	}
	if q.Offset > math.MaxInt-q.Limit {
		return nil, fmt.Errorf("%w: offset %d with limit %d is out of range", models.ErrInvalidQuery, q.Offset, q.Limit)
	}
	return q, nil
}

// Tokenize splits s on whitespace and keeps every token that contains a letter or digit.
func Tokenize(s string) []string {
	fields := strings.Fields(s)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.IndexFunc(f, isWordRune) < 0 {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// Words splits a term into the word pieces a unicode tokenizer would see.
func Words(term string) []string {
	return strings.FieldsFunc(strings.ToLower(term), func(r rune) bool { return !isWordRune(r) })
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// FilterTypes keeps the valid, distinct entries of types in order and reports the rest.
func FilterTypes(types []string) (valid []string, dropped []*models.InvalidFilterError) {
	seen := make(map[string]struct{}, len(types))
	valid = make([]string, 0, len(types))
	for _, t := range types {
		if !ValidType(t) {
			dropped = append(dropped, &models.InvalidFilterError{Value: t})
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		valid = append(valid, t)
	}
	return valid, dropped
}

func uniqueKeys(keys []int64) []int64 {
	seen := make(map[int64]struct{}, len(keys))
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
