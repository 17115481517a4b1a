package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/logging"
)

// Engine is the authoritative in-memory queue. All mutations are serialized
// and each one is persisted before the call returns.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	entries []Entry

	subMu   sync.Mutex
	subs    map[uint64]chan struct{}
	nextSub uint64
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides local ID generation.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine constructs an empty engine backed by store. Call LoadFromStorage
// before the first Enqueue.
func NewEngine(store Store, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "queue"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   newLocalID,
		entries: []Entry{},
		subs:    make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newLocalID returns a UUIDv7: a millisecond timestamp prefix followed by
// random bits, so IDs sort roughly by creation time.
func newLocalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// LoadFromStorage replaces in-memory state with the store's contents and
// returns the number of entries loaded. Unreadable storage yields an empty
// queue so startup never blocks on it.
func (e *Engine) LoadFromStorage(ctx context.Context) int {
	var entries []Entry
	if e.store != nil {
		loaded, err := e.store.Load(ctx)
		if err != nil {
			logging.WarnWithContext(e.logger, "offline queue unreadable; starting empty", "queue_load_failed",
				logging.Error(err),
				logging.Hint("inspect the preserved .corrupt copy in the state directory"),
				logging.Impact("previously queued seizures are not visible until recovered"),
			)
		} else {
			entries = loaded
		}
	}

	e.mu.Lock()
	e.entries = cloneEntries(entries)
	count := len(e.entries)
	e.mu.Unlock()

	e.logger.Info("offline queue loaded",
		logging.Int("entries", count),
		logging.String(logging.FieldEventType, "queue_loaded"),
	)
	e.notify()
	return count
}

// Enqueue appends a pending entry for payload and returns its local ID. It
// fails only when the payload is missing or is not valid JSON.
func (e *Engine) Enqueue(ctx context.Context, payload json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return "", ErrNilPayload
	}
	if !json.Valid(trimmed) {
		return "", ErrInvalidPayload
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.newID()
	for e.indexLocked(id) >= 0 {
		id = e.newID()
	}
	now := e.now()
	e.entries = append(e.entries, Entry{
		LocalID:   id,
		Payload:   slices.Clone(json.RawMessage(trimmed)),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	e.persistLocked(ctx, "enqueue")

	e.logger.Info("entry queued",
		logging.EntryID(id),
		logging.Int("queue_length", len(e.entries)),
		logging.String(logging.FieldEventType, "entry_queued"),
	)
	return id, nil
}

// MarkSynced removes the entry with localID. It is a no-op, returning false,
// when the entry is absent.
func (e *Engine) MarkSynced(ctx context.Context, localID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexLocked(localID)
	if idx < 0 {
		e.logger.Debug("mark synced ignored; entry absent", logging.EntryID(localID))
		return false
	}
	e.entries = slices.Delete(e.entries, idx, idx+1)
	e.persistLocked(ctx, "mark_synced")
	return true
}

// MarkFailed records a failed submission on the entry with localID. It is a
// no-op, returning false, when the entry is absent. An empty kind is recorded
// as transient.
func (e *Engine) MarkFailed(ctx context.Context, localID, reason string, kind FailureKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexLocked(localID)
	if idx < 0 {
		e.logger.Debug("mark failed ignored; entry absent", logging.EntryID(localID))
		return false
	}
	e.entries[idx].setFailed(reason, kind, e.now())
	e.persistLocked(ctx, "mark_failed")
	return true
}

// Retry moves failed entries back to pending, clearing their error. With no
// IDs every failed entry is reset. It returns the number of entries changed.
func (e *Engine) Retry(ctx context.Context, localIDs ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	wanted := idSet(localIDs)
	now := e.now()
	changed := 0
	for i := range e.entries {
		if e.entries[i].Status != StatusFailed {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[e.entries[i].LocalID]; !ok {
				continue
			}
		}
		e.entries[i].resetPending(now)
		changed++
	}
	if changed > 0 {
		e.persistLocked(ctx, "retry")
	}
	return changed
}

// Discard removes the listed entries regardless of status and returns how
// many were removed. It is the manual resolution for rejected entries.
func (e *Engine) Discard(ctx context.Context, localIDs ...string) int {
	wanted := idSet(localIDs)
	if wanted == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.entries)
	e.entries = slices.DeleteFunc(e.entries, func(entry Entry) bool {
		_, ok := wanted[entry.LocalID]
		return ok
	})
	removed := before - len(e.entries)
	if removed > 0 {
		e.persistLocked(ctx, "discard")
		e.logger.Info("entries discarded",
			logging.Int("count", removed),
			logging.String(logging.FieldEventType, "entries_discarded"),
		)
	}
	return removed
}

// Items returns a snapshot of the queue in insertion order.
func (e *Engine) Items() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneEntries(e.entries)
}

// Get returns a copy of the entry with localID.
func (e *Engine) Get(localID string) (Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(localID)
	if idx < 0 {
		return Entry{}, false
	}
	return e.entries[idx], true
}

// Len returns the number of unresolved entries.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Subscribe returns a channel that receives a signal after queue changes.
// Signals coalesce: a slow reader sees at least one signal after the latest
// change and should re-read Items. The returned func unsubscribes and closes
// the channel.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) notify() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// persistLocked writes the current list and notifies subscribers. Save errors
// are logged and swallowed. Caller cancellation does not abort the write.
func (e *Engine) persistLocked(ctx context.Context, op string) {
	if e.store != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := e.store.Save(context.WithoutCancel(ctx), cloneEntries(e.entries)); err != nil {
			logging.WarnWithContext(e.logger, "offline queue save failed; keeping in-memory state", "queue_save_failed",
				logging.Error(err),
				logging.String("operation", op),
				logging.Int("queue_length", len(e.entries)),
				logging.Hint("check free space and permissions on the state directory"),
				logging.Impact("recent queue changes are lost if the process exits before the next successful save"),
			)
		}
	}
	e.notify()
}

func (e *Engine) indexLocked(localID string) int {
	return slices.IndexFunc(e.entries, func(entry Entry) bool {
		return entry.LocalID == localID
	})
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
