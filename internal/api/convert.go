package api

import (
	"time"

	"fieldsync/internal/connectivity"
	"fieldsync/internal/queue"
	"fieldsync/internal/seizure"
	"fieldsync/internal/status"
	"fieldsync/internal/syncer"
)

// FromEntry converts a queue entry to its API representation.
func FromEntry(entry queue.Entry) QueueItem {
	dto := QueueItem{
		LocalID:       entry.LocalID,
		Status:        string(entry.Status),
		StatusLabel:   entry.StatusLabel(),
		ErrorMessage:  entry.Error,
		FailureKind:   string(entry.FailureKind),
		Attempts:      entry.Attempts,
		CreatedAt:     formatTime(entry.CreatedAt),
		UpdatedAt:     formatTime(entry.UpdatedAt),
		LastAttemptAt: formatTime(entry.LastAttemptAt),
		Payload:       entry.Payload,
	}
	if s, err := seizure.Decode(entry.Payload); err == nil && s.Species != "" {
		dto.Summary = s.Summary()
	}
	return dto
}

// FromEntries converts entries preserving order. The result is never nil.
func FromEntries(entries []queue.Entry) []QueueItem {
	out := make([]QueueItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromSyncResult converts a driver result.
func FromSyncResult(result syncer.Result) SyncResult {
	return SyncResult{
		Trigger:        result.Trigger,
		Attempted:      result.Attempted,
		Synced:         result.Synced,
		Failed:         result.Failed,
		Rejected:       result.Rejected,
		Interrupted:    result.Interrupted,
		StartedAt:      formatTime(result.StartedAt),
		DurationMillis: result.Duration.Milliseconds(),
	}
}

// FromSnapshot fills the status portion of a DaemonStatus.
func FromSnapshot(snap status.Snapshot, state connectivity.State) DaemonStatus {
	dto := DaemonStatus{
		Banner: snap.Banner(),
		Connectivity: Connectivity{
			Online:            snap.Online,
			Connected:         state.Connected,
			InternetReachable: state.InternetReachable,
		},
		Counts: QueueCounts{
			Pending:  snap.Pending,
			Failed:   snap.Failed,
			Rejected: snap.Rejected,
			Total:    snap.Total,
		},
		Syncing:         snap.Syncing,
		OldestPendingAt: formatTime(snap.OldestPending),
	}
	if snap.LastSync != nil {
		last := FromSyncResult(*snap.LastSync)
		dto.LastSync = &last
	}
	return dto
}

// ParseTime parses a timestamp produced by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
