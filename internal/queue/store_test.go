package queue_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/testsupport"
)

func TestStoresRoundTripAcrossRestart(t *testing.T) {
	for _, backend := range []string{config.StorageSQLite, config.StorageFile} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testsupport.NewConfig(t, testsupport.WithStorageBackend(backend))

			store, err := queue.Open(cfg, logging.NewNop())
			if err != nil {
				t.Fatalf("queue.Open: %v", err)
			}
			engine := queue.NewEngine(store, logging.NewNop())
			engine.LoadFromStorage(ctx)

			pending, _ := engine.Enqueue(ctx, seizurePayload("pending"))
			failed, _ := engine.Enqueue(ctx, seizurePayload("failed"))
			synced, _ := engine.Enqueue(ctx, seizurePayload("synced"))
			engine.MarkFailed(ctx, failed, "validation failed", queue.FailurePermanent)
			engine.MarkSynced(ctx, synced)
			if err := store.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			reopened := testsupport.MustOpenStore(t, cfg)
			restarted := queue.NewEngine(reopened, logging.NewNop())
			if n := restarted.LoadFromStorage(ctx); n != 2 {
				t.Fatalf("expected 2 entries after restart, got %d", n)
			}
			items := restarted.Items()
			if items[0].LocalID != pending || items[0].Status != queue.StatusPending {
				t.Fatalf("unexpected first entry: %+v", items[0])
			}
			if items[1].LocalID != failed || !items[1].Rejected() || items[1].Error != "validation failed" {
				t.Fatalf("unexpected second entry: %+v", items[1])
			}
		})
	}
}

func TestStoresLoadEmptyWhenNothingSaved(t *testing.T) {
	for _, backend := range []string{config.StorageSQLite, config.StorageFile} {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithStorageBackend(backend))
			store := testsupport.MustOpenStore(t, cfg)
			entries, err := store.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("expected empty queue, got %d", len(entries))
			}
		})
	}
}

func TestFileStorePreservesCorruptDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStorageBackend(config.StorageFile))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if err := os.WriteFile(cfg.QueueFilePath(), []byte("[{broken"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	_, err := store.Load(context.Background())
	if !errors.Is(err, queue.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
	backup, err := os.ReadFile(cfg.QueueFilePath() + ".corrupt")
	if err != nil {
		t.Fatalf("expected corrupt copy: %v", err)
	}
	if string(backup) != "[{broken" {
		t.Fatalf("unexpected backup content: %q", backup)
	}
}

func TestSQLiteStorePreservesCorruptValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := queue.OpenSQLiteStore(path, logging.NewNop())
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Save valid data, then overwrite the row through a second handle.
	if err := store.Save(context.Background(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := corruptSQLiteValue(path); err != nil {
		t.Fatalf("corrupt value: %v", err)
	}

	if _, err := store.Load(context.Background()); !errors.Is(err, queue.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestSQLiteStoreReopensExistingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	first, err := queue.OpenSQLiteStore(path, logging.NewNop())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := queue.OpenSQLiteStore(path, logging.NewNop())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	second.Close()
}

func TestSQLiteStoreRecoversFromDamagedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	garbage := bytes.Repeat([]byte("this is not an sqlite database\n"), 128)
	if err := os.WriteFile(cfg.QueueDBPath(), garbage, 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("damaged database must not block open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := queue.NewEngine(store, logging.NewNop())
	if n := engine.LoadFromStorage(context.Background()); n != 0 {
		t.Fatalf("expected empty queue, got %d entries", n)
	}
	id, err := engine.Enqueue(context.Background(), seizurePayload("after recovery"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	entries, err := store.Load(context.Background())
	if err != nil || len(entries) != 1 || entries[0].LocalID != id {
		t.Fatalf("expected fresh database to persist new entry, got %+v %v", entries, err)
	}

	backup, err := os.ReadFile(cfg.QueueDBPath() + ".corrupt")
	if err != nil {
		t.Fatalf("expected damaged file kept aside: %v", err)
	}
	if !bytes.Equal(backup, garbage) {
		t.Fatal("backup does not match the damaged file")
	}
}

func corruptSQLiteValue(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec("UPDATE kv_store SET value = ? WHERE key = ?", "{not json", queue.StorageKey)
	return err
}
