// Package source registers indexable record types: how each one produces its
// index entry and how its records are loaded back for hydrated search results.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/query"
)

// ErrUnknownType is returned for a type tag that was never registered.
var ErrUnknownType = errors.New("unknown source type")

// Field is one piece of indexable text read from a record.
type Field[T any] struct {
	Name  string
	Value func(T) string
}

// Definition describes one indexable record type.
type Definition[T any] struct {
	// Type is the tag stored on index rows; it must be a plain identifier.
	Type string
	// ID returns the record's identifier within its type.
	ID func(T) int64
	// Fields are concatenated in order, separated by newlines.
	Fields []Field[T]
	// Parent returns the record's grouping key; nil means rows have no parent.
	Parent func(T) (int64, bool)
	// CheckForChanges skips index writes when text and parent are unchanged. Defaults to true.
	CheckForChanges *bool
	// Find loads records by id. Order of the result does not matter; missing ids are omitted.
	Find func(ctx context.Context, ids []int64) ([]T, error)
}

// Type is the untyped view of a registered definition.
type Type struct {
	Name            string
	CheckForChanges bool

	extract func(rec interface{}) (models.Entry, error)
	find    func(ctx context.Context, ids []int64) (map[int64]interface{}, error)
}

// Extract produces the index entry for rec.
func (t *Type) Extract(rec interface{}) (models.Entry, error) {
	return t.extract(rec)
}

// Find bulk-loads records by id, keyed by id.
func (t *Type) Find(ctx context.Context, ids []int64) (map[int64]interface{}, error) {
	return t.find(ctx, ids)
}

// Registry holds the registered record types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register adds def to r.
func Register[T any](r *Registry, def Definition[T]) error {
	if !query.ValidType(def.Type) {
		return fmt.Errorf("invalid source type %q", def.Type)
	}
	if def.ID == nil {
		return fmt.Errorf("source type %s: ID accessor is required", def.Type)
	}
	if def.Find == nil {
		return fmt.Errorf("source type %s: Find is required", def.Type)
	}
	check := true
	if def.CheckForChanges != nil {
		check = *def.CheckForChanges
	}

	t := &Type{
		Name:            def.Type,
		CheckForChanges: check,
		extract: func(rec interface{}) (models.Entry, error) {
			v, ok := rec.(T)
			if !ok {
				return models.Entry{}, fmt.Errorf("source type %s: unexpected record %T", def.Type, rec)
			}
			return def.Entry(v), nil
		},
		find: func(ctx context.Context, ids []int64) (map[int64]interface{}, error) {
			recs, err := def.Find(ctx, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int64]interface{}, len(recs))
			for _, rec := range recs {
				byID[def.ID(rec)] = rec
			}
			return byID, nil
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[def.Type]; exists {
		return fmt.Errorf("source type %s already registered", def.Type)
	}
	r.types[def.Type] = t
	r.order = append(r.order, def.Type)
	return nil
}

// MustRegister is Register that panics on error, for package-level setup.
func MustRegister[T any](r *Registry, def Definition[T]) {
	if err := Register(r, def); err != nil {
		panic(err)
	}
}

// Lookup returns the registered type named name.
func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Entry extracts the index entry for rec at this moment.
func (def Definition[T]) Entry(rec T) models.Entry {
	values := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		values[i] = f.Value(rec)
	}
	e := models.Entry{
		Type: def.Type,
		ID:   def.ID(rec),
		Text: strings.Join(values, "\n"),
	}
	if def.Parent != nil {
		if p, ok := def.Parent(rec); ok {
			e.ParentID = &p
		}
	}
	return e
}
