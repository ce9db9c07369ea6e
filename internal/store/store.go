// Package store persists PersistentTask records.
//
// The scheduler only relies on the durable-record contract below; engine
// internals differ per driver. Single-record insert/delete are atomic in every
// driver; there are no cross-record transactions.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

// Config configures storage.
//
// Driver values:
//   - "file":     dependency-free file backend (snapshot + journal)
//   - "sqlite":   SQLite database file
//   - "postgres": PostgreSQL via DSN
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the durable task-record repository.
//
// Interval and expiry round-trip as int64 nanoseconds in every driver, so
// records survive restarts without precision loss.
type Store interface {
	// Insert persists a new record. CreatedAt/UpdatedAt are set by the store.
	Insert(ctx context.Context, t *domain.PersistentTask) error
	// Get returns domain.ErrTaskNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.PersistentTask, error)
	// Delete is idempotent: deleting an absent id succeeds.
	Delete(ctx context.Context, id string) error
	// ListAll returns every record; used at startup recovery only.
	ListAll(ctx context.Context) ([]domain.PersistentTask, error)
	Close() error
}

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
