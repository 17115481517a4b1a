package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"fieldsync/internal/fileutil"
)

// FileStore keeps the serialized queue in a single JSON document that is
// replaced atomically on every save.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// OpenFileStore returns a store writing to path. The file is created on the
// first save.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("queue file path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the JSON document location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the queue document. A missing file yields an empty queue.
// Undecodable content is copied to path+".corrupt" and reported as
// ErrCorruptState.
func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	entries, _, err := DecodeEntries(data)
	if err != nil {
		if backupErr := fileutil.CopyFile(s.path, s.path+corruptKeySuffix); backupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("preserve corrupt queue: %w", backupErr))
		}
		return nil, err
	}
	return entries, nil
}

// Save atomically replaces the queue document.
func (s *FileStore) Save(ctx context.Context, entries []Entry) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return err
	}
	data, err := EncodeEntries(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between saves.
func (s *FileStore) Close() error {
	return nil
}
