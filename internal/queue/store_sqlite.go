package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fieldsync/internal/logging"
)

// SQLiteStore keeps the serialized queue in a key/value table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	sqliteCorruptCode       = 11
	sqliteNotADBCode        = 26
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	corruptKeySuffix        = ".corrupt"
)

// OpenSQLiteStore initializes or connects to the queue database at path.
// A file SQLite cannot read as a database is renamed to path+".corrupt" and
// replaced by an empty database, so a damaged file never blocks startup.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}

	store, err := openSQLite(path)
	if err == nil || !isSQLiteCorrupt(err) {
		return store, err
	}

	aside, moveErr := moveCorruptDatabase(path)
	if moveErr != nil {
		return nil, errors.Join(err, fmt.Errorf("move corrupt database aside: %w", moveErr))
	}
	logging.WarnWithContext(logging.NewComponentLogger(logger, "queue"),
		"queue database unreadable; starting empty", "queue_db_corrupt",
		logging.String("path", path),
		logging.String("moved_to", aside),
		logging.Error(err),
		logging.Hint("inspect "+aside+" to recover entries queued before the damage"),
		logging.Impact("entries in the damaged database are not synced"),
	)
	return openSQLite(path)
}

func openSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// moveCorruptDatabase renames path and its WAL sidecars out of the way. An
// earlier backup is kept by suffixing the new one with a timestamp.
func moveCorruptDatabase(path string) (string, error) {
	aside := path + corruptKeySuffix
	if _, err := os.Stat(aside); err == nil {
		aside = fmt.Sprintf("%s.%d", aside, time.Now().Unix())
	}
	if err := os.Rename(path, aside); err != nil {
		return "", err
	}
	for _, sidecar := range []string{"-wal", "-shm"} {
		if err := os.Rename(path+sidecar, aside+sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return aside, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads the queue stored under StorageKey. A missing key yields an empty
// queue. Undecodable data is copied aside under StorageKey+".corrupt" and
// reported as ErrCorruptState.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	ctx = ensureContext(ctx)
	var value string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", StorageKey).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}

	entries, _, err := DecodeEntries([]byte(value))
	if err != nil {
		if backupErr := s.put(ctx, StorageKey+corruptKeySuffix, value); backupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("preserve corrupt queue: %w", backupErr))
		}
		return nil, err
	}
	return entries, nil
}

// Save replaces the stored queue with entries.
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry) error {
	data, err := EncodeEntries(entries)
	if err != nil {
		return err
	}
	return s.put(ensureContext(ctx), StorageKey, string(data))
}

func (s *SQLiteStore) put(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteCorrupt(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case sqliteCorruptCode, sqliteNotADBCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "database disk image is malformed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
