package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a queue entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusSynced, StatusFailed}

// AllStatuses returns the known statuses in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a case-insensitive string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// FailureKind separates failures worth retrying automatically from those
// that need a person to act.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// ParseFailureKind converts a case-insensitive string into a FailureKind.
func ParseFailureKind(value string) (FailureKind, bool) {
	switch FailureKind(strings.ToLower(strings.TrimSpace(value))) {
	case FailureTransient:
		return FailureTransient, true
	case FailurePermanent:
		return FailurePermanent, true
	default:
		return "", false
	}
}

// Entry is one queued create-record request awaiting remote confirmation.
type Entry struct {
	LocalID       string          `json:"localId"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Error         string          `json:"error,omitempty"`
	FailureKind   FailureKind     `json:"failureKind,omitempty"`
	Attempts      int             `json:"attempts,omitempty"`
	CreatedAt     time.Time       `json:"createdAt,omitzero"`
	UpdatedAt     time.Time       `json:"updatedAt,omitzero"`
	LastAttemptAt time.Time       `json:"lastAttemptAt,omitzero"`
}

// Eligible reports whether a sync pass should submit the entry. Failed
// entries are retried unless the remote rejected them permanently.
func (e Entry) Eligible() bool {
	switch e.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return e.FailureKind != FailurePermanent
	default:
		return false
	}
}

// Rejected reports whether the entry failed permanently and needs manual action.
func (e Entry) Rejected() bool {
	return e.Status == StatusFailed && e.FailureKind == FailurePermanent
}

// StatusLabel renders the status with the failure kind folded in.
func (e Entry) StatusLabel() string {
	if e.Status == StatusFailed && e.FailureKind != "" {
		return fmt.Sprintf("%s (%s)", e.Status, e.FailureKind)
	}
	return string(e.Status)
}

// setFailed records a failed attempt.
func (e *Entry) setFailed(reason string, kind FailureKind, at time.Time) {
	if kind == "" {
		kind = FailureTransient
	}
	e.Status = StatusFailed
	e.Error = strings.TrimSpace(reason)
	if e.Error == "" {
		e.Error = "submission failed"
	}
	e.FailureKind = kind
	e.Attempts++
	e.LastAttemptAt = at
	e.UpdatedAt = at
}

// resetPending clears failure details so the entry is submitted again.
func (e *Entry) resetPending(at time.Time) {
	e.Status = StatusPending
	e.Error = ""
	e.FailureKind = ""
	e.UpdatedAt = at
}

func cloneEntries(entries []Entry) []Entry {
	if len(entries) == 0 {
		return []Entry{}
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
