package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when an index row already exists for a (type, id) pair.
	ErrConflict = errors.New("index row already exists")
	// ErrNotFound is returned when a requested index row or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery is returned for queries with no searchable terms.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidFilter marks a type filter entry that failed validation.
	ErrInvalidFilter = errors.New("invalid type filter")
	// ErrDanglingReference is returned when a ranked row points at a record that no longer exists.
	ErrDanglingReference = errors.New("dangling reference")
)

// ConflictError identifies the row that could not be created.
type ConflictError struct {
	Type string
	ID   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("index row for %s/%d already exists", e.Type, e.ID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidFilterError is a type filter entry that was dropped.
type InvalidFilterError struct {
	Value string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid type filter %q", e.Value)
}

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilter }

// DanglingReferenceError identifies an index row whose source record is gone.
type DanglingReferenceError struct {
	Type string
	ID   int64
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("source record %s/%d not found", e.Type, e.ID)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrDanglingReference }
