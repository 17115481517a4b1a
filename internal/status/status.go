// Package status projects queue and connectivity state into the read-only
// counts the view layer renders as a banner.
package status

import (
	"fmt"
	"time"

	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
)

// Snapshot is a point-in-time view of the offline queue.
type Snapshot struct {
	Online        bool           `json:"online"`
	Pending       int            `json:"pending"`
	Failed        int            `json:"failed"`
	Rejected      int            `json:"rejected"`
	Total         int            `json:"total"`
	Syncing       bool           `json:"syncing"`
	OldestPending time.Time      `json:"oldest_pending,omitzero"`
	LastSync      *syncer.Result `json:"last_sync,omitempty"`
}

// Compute derives counts from a queue snapshot. Failed counts transient
// failures awaiting retry; Rejected counts permanent ones.
func Compute(items []queue.Entry, online bool) Snapshot {
	snap := Snapshot{Online: online, Total: len(items)}
	for _, entry := range items {
		switch {
		case entry.Status == queue.StatusPending:
			snap.Pending++
			if !entry.CreatedAt.IsZero() && (snap.OldestPending.IsZero() || entry.CreatedAt.Before(snap.OldestPending)) {
				snap.OldestPending = entry.CreatedAt
			}
		case entry.Rejected():
			snap.Rejected++
		case entry.Status == queue.StatusFailed:
			snap.Failed++
		}
	}
	return snap
}

// OldestPendingAge is how long the oldest pending entry has waited.
func (s Snapshot) OldestPendingAge(now time.Time) time.Duration {
	if s.OldestPending.IsZero() {
		return 0
	}
	return now.Sub(s.OldestPending)
}

// Banner renders the one-line status shown above the seizure list.
func (s Snapshot) Banner() string {
	waiting := s.Pending + s.Failed
	switch {
	case !s.Online:
		return fmt.Sprintf("Offline · %d pending", waiting)
	case s.Syncing:
		return fmt.Sprintf("Syncing · %d pending", waiting)
	case waiting > 0:
		if s.Rejected > 0 {
			return fmt.Sprintf("%d pending · %d rejected", waiting, s.Rejected)
		}
		return fmt.Sprintf("%d pending", waiting)
	case s.Rejected > 0:
		return fmt.Sprintf("%d rejected", s.Rejected)
	default:
		return "All synced"
	}
}

// QueueReader exposes the queue snapshot.
type QueueReader interface {
	Items() []queue.Entry
}

// OnlineReader exposes the connectivity flag.
type OnlineReader interface {
	Online() bool
}

// SyncReader exposes driver progress.
type SyncReader interface {
	Syncing() bool
	LastResult() (syncer.Result, bool)
}

// Surface assembles snapshots from live components. It has no mutators.
type Surface struct {
	queue  QueueReader
	online OnlineReader
	sync   SyncReader
}

// NewSurface wires a surface. online and sync may be nil.
func NewSurface(q QueueReader, online OnlineReader, sync SyncReader) *Surface {
	return &Surface{queue: q, online: online, sync: sync}
}

// Snapshot returns the current projection.
func (s *Surface) Snapshot() Snapshot {
	snap := Compute(s.queue.Items(), s.IsOnline())
	if s.sync != nil {
		snap.Syncing = s.sync.Syncing()
		if last, ok := s.sync.LastResult(); ok {
			snap.LastSync = &last
		}
	}
	return snap
}

// PendingCount is the number of entries with status pending.
func (s *Surface) PendingCount() int {
	return s.Snapshot().Pending
}

// IsOnline mirrors the connectivity monitor, defaulting to online.
func (s *Surface) IsOnline() bool {
	if s.online == nil {
		return true
	}
	return s.online.Online()
}
