package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperjump/fulltextable/internal/config"
	"github.com/hyperjump/fulltextable/internal/content"
	"github.com/hyperjump/fulltextable/internal/indexer"
	"github.com/hyperjump/fulltextable/internal/search"
	"github.com/hyperjump/fulltextable/internal/source"
	"github.com/hyperjump/fulltextable/internal/storage"
	"github.com/hyperjump/fulltextable/pkg/utils"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	ContentDB *sql.DB
	Registry  *source.Registry
	Sync      *indexer.Synchronizer
	Content   *content.Service
	Engine    *search.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.ContentDB != nil {
		_ = c.ContentDB.Close()
	}
}

// rebuilder is implemented by stores that keep a derived full-text index beside the rows.
type rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Reindex backfills index rows for every stored record, then rebuilds the store's
// full-text index when it keeps one.
func (c *Components) Reindex(ctx context.Context) (int, error) {
	n, err := c.Content.Reindex(ctx)
	if err != nil {
		return n, err
	}
	if r, ok := c.Storage.(rebuilder); ok {
		if err := r.Rebuild(ctx); err != nil {
			return n, fmt.Errorf("failed to rebuild full-text index: %w", err)
		}
	}
	return n, nil
}

// openStorage opens the index row store selected by cfg.Storage.Backend.
func openStorage(cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendBleve:
		return storage.NewBleveStorage(cfg.BleveIndexPath)
	case config.BackendSQLite, "":
		return storage.NewSQLiteStorage(cfg.DatabasePath, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	logger = utils.OrNop(logger)
	store, err := openStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	c.ContentDB, err = content.Open(cfg.Storage.ContentDatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}

	c.Registry = source.NewRegistry()
	c.Sync = indexer.NewSynchronizer(store, c.Registry, indexer.WithLogger(logger))
	c.Content, err = content.NewService(c.ContentDB, c.Registry, c.Sync, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register content types: %w", err)
	}
	c.Engine = search.NewEngine(store, c.Registry, &cfg.Search, search.WithLogger(logger))

	logger.Info("components initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.Strings("types", c.Registry.Names()))
	return c, nil
}
