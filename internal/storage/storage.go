// Package storage persists index entries and answers similarity queries over them.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tornshorts/RAG-Tutorial/internal/config"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"go.uber.org/zap"
)

// ErrStoreUnavailable is returned when the persisted index cannot be opened or read.
var ErrStoreUnavailable = errors.New("index store unavailable")

// IndexStore maps chunk IDs to persisted entries.
//
// Insert is all-or-nothing per call. Inserting an ID that already exists is not part of the
// contract; callers filter against ExistingIDs first. Reset removes every entry and the
// on-disk representation; the store is usable again afterwards.
type IndexStore interface {
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	Insert(ctx context.Context, entries []*models.IndexEntry) error
	Query(ctx context.Context, embedding []float32, k int) ([]*models.ScoredEntry, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.StoreStats, error)
	Reset(ctx context.Context) error
	Close() error
}

// KeywordSearcher is implemented by stores that also keep a full-text index.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, query string, limit int) ([]*models.ScoredEntry, error)
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (IndexStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return NewSQLiteStore(cfg.PersistDir, WithLogger(logger))
	case config.BackendQdrant:
		return NewQdrantStore(ctx, cfg.Qdrant.Addr(), cfg.Qdrant.Collection, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s, %s)",
			cfg.Backend, config.BackendSQLite, config.BackendQdrant)
	}
}

type options struct {
	logger *zap.Logger
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, fmt.Sprintf(format, args...))
}
