// Package indexer keeps index rows in step with the lifecycle of source records.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/source"
	"github.com/hyperjump/fulltextable/internal/storage"
	"go.uber.org/zap"
)

// Synchronizer writes, refreshes and removes index rows as records change.
type Synchronizer struct {
	storage  storage.Storage
	registry *source.Registry
	logger   *zap.Logger
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithLogger sets a logger for debug output (row created, row refreshed, etc.).
func WithLogger(l *zap.Logger) SynchronizerOption {
	return func(s *Synchronizer) { s.logger = l }
}

// NewSynchronizer creates a synchronizer over store. registry may be nil when
// only the entry-level hooks are used.
func NewSynchronizer(store storage.Storage, registry *source.Registry, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		storage:  store,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnCreate inserts the row for a newly created record.
// It fails with a *models.ConflictError when a row for (type, id) already exists.
func (s *Synchronizer) OnCreate(ctx context.Context, e models.Entry) (*models.Row, error) {
	row := e.Row()
	if err := s.storage.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create index row: %w", err)
	}
	s.logger.Debug("index row created",
		zap.String("type", row.SourceType), zap.Int64("id", row.SourceID))
	return row, nil
}

// OnUpdate refreshes the row for an updated record. A missing row is created.
// With checkForChanges set, the row is written only when its text or parent differ.
func (s *Synchronizer) OnUpdate(ctx context.Context, e models.Entry, checkForChanges bool) (*models.Row, error) {
	existing, err := s.storage.Get(ctx, e.Type, e.ID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Debug("index row missing on update, creating",
			zap.String("type", e.Type), zap.Int64("id", e.ID))
		return s.OnCreate(ctx, e)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index row: %w", err)
	}

	if checkForChanges && existing.Value == e.Text && models.SameParent(existing.ParentID, e.ParentID) {
		s.logger.Debug("index row unchanged",
			zap.String("type", e.Type), zap.Int64("id", e.ID))
		return existing, nil
	}

	existing.Value = e.Text
	existing.ParentID = e.ParentID
	if err := s.storage.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update index row: %w", err)
	}
	s.logger.Debug("index row refreshed",
		zap.String("type", e.Type), zap.Int64("id", e.ID))
	return existing, nil
}

// OnDelete removes the row for a deleted record. Deleting a missing row is not an error.
func (s *Synchronizer) OnDelete(ctx context.Context, sourceType string, id int64) error {
	if err := s.storage.Delete(ctx, sourceType, id); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to delete index row: %w", err)
	}
	s.logger.Debug("index row deleted",
		zap.String("type", sourceType), zap.Int64("id", id))
	return nil
}

// RecordCreated extracts rec through its registered type and calls OnCreate.
func (s *Synchronizer) RecordCreated(ctx context.Context, sourceType string, rec interface{}) (*models.Row, error) {
	_, e, err := s.extract(sourceType, rec)
	if err != nil {
		return nil, err
	}
	return s.OnCreate(ctx, e)
}

// RecordUpdated extracts rec and calls OnUpdate with the type's change check setting.
func (s *Synchronizer) RecordUpdated(ctx context.Context, sourceType string, rec interface{}) (*models.Row, error) {
	typ, e, err := s.extract(sourceType, rec)
	if err != nil {
		return nil, err
	}
	return s.OnUpdate(ctx, e, typ.CheckForChanges)
}

// RecordDeleted removes the row for a deleted record of a registered type.
func (s *Synchronizer) RecordDeleted(ctx context.Context, sourceType string, id int64) error {
	if _, err := s.lookup(sourceType); err != nil {
		return err
	}
	return s.OnDelete(ctx, sourceType, id)
}

// Backfill creates or refreshes rows for existing records of one type and
// returns how many rows were written or confirmed.
func (s *Synchronizer) Backfill(ctx context.Context, sourceType string, records []interface{}) (n int, err error) {
	typ, err := s.lookup(sourceType)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e, err := typ.Extract(rec)
		if err != nil {
			return n, err
		}
		if _, err := s.OnUpdate(ctx, e, typ.CheckForChanges); err != nil {
			return n, err
		}
		n++
	}
	s.logger.Info("backfill complete", zap.String("type", sourceType), zap.Int("records", n))
	return n, nil
}

func (s *Synchronizer) lookup(sourceType string) (*source.Type, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: %s (no registry)", source.ErrUnknownType, sourceType)
	}
	return s.registry.Lookup(sourceType)
}

func (s *Synchronizer) extract(sourceType string, rec interface{}) (*source.Type, models.Entry, error) {
	typ, err := s.lookup(sourceType)
	if err != nil {
		return nil, models.Entry{}, err
	}
	e, err := typ.Extract(rec)
	if err != nil {
		return nil, models.Entry{}, err
	}
	return typ, e, nil
}
