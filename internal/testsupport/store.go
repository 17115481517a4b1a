package testsupport

import (
	"context"
	"sync"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/queue"
)

// MustOpenStore opens the configured queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, nil)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MemoryStore is an in-memory queue.Store that round-trips through the
// persisted JSON layout and can inject load and save failures.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	loadErr error
	saveErr error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]queue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	entries, _, err := queue.DecodeEntries(s.data)
	return entries, err
}

func (s *MemoryStore) Save(ctx context.Context, entries []queue.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := queue.EncodeEntries(entries)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SetLoadError makes subsequent loads fail with err (nil clears it).
func (s *MemoryStore) SetLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// SetSaveError makes subsequent saves fail with err (nil clears it).
func (s *MemoryStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// SetRaw replaces the stored bytes, e.g. to simulate corruption.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}

// Raw returns the last successfully saved bytes.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// Saves returns how many Save calls were made, including failed ones.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
