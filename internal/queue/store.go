package queue

import (
	"context"
	"fmt"
	"log/slog"

	"fieldsync/internal/config"
)

// Store persists the queue as one serialized list. Implementations report
// errors honestly; the Engine decides how to degrade.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// Open returns the durable store selected by storage.backend. logger
// receives recovery warnings and may be nil.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("queue store requires config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch cfg.Storage.Backend {
	case config.StorageFile:
		store, err := OpenFileStore(cfg.QueueFilePath())
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageSQLite, "":
		store, err := OpenSQLiteStore(cfg.QueueDBPath(), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}
