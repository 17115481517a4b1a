package api

import (
	"encoding/json"

	"fieldsync/internal/seizure"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	LocalID       string          `json:"localId"`
	Status        string          `json:"status"`
	StatusLabel   string          `json:"statusLabel"`
	Summary       string          `json:"summary,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	FailureKind   string          `json:"failureKind,omitempty"`
	Attempts      int             `json:"attempts"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
	LastAttemptAt string          `json:"lastAttemptAt,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// QueueCounts breaks the queue down by resolution state.
type QueueCounts struct {
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// Connectivity mirrors the latest connectivity observation.
type Connectivity struct {
	Online            bool `json:"online"`
	Connected         bool `json:"connected"`
	InternetReachable bool `json:"internetReachable"`
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Trigger        string `json:"trigger,omitempty"`
	Attempted      int    `json:"attempted"`
	Synced         int    `json:"synced"`
	Failed         int    `json:"failed"`
	Rejected       int    `json:"rejected"`
	Interrupted    bool   `json:"interrupted,omitempty"`
	StartedAt      string `json:"startedAt,omitempty"`
	DurationMillis int64  `json:"durationMillis"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool         `json:"running"`
	PID             int          `json:"pid"`
	Banner          string       `json:"banner"`
	Connectivity    Connectivity `json:"connectivity"`
	Counts          QueueCounts  `json:"counts"`
	Syncing         bool         `json:"syncing"`
	OldestPendingAt string       `json:"oldestPendingAt,omitempty"`
	LastSync        *SyncResult  `json:"lastSync,omitempty"`
	StorageBackend  string       `json:"storageBackend"`
	QueuePath       string       `json:"queuePath"`
	LockFilePath    string       `json:"lockFilePath"`
	LogPath         string       `json:"logPath,omitempty"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// EnqueueRequest is the seizure the view layer wants queued.
type EnqueueRequest = seizure.Seizure

// RetryResponse reports how many entries went back to pending.
type RetryResponse struct {
	Updated int `json:"updated"`
}

// DiscardResponse reports how many entries were removed.
type DiscardResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse is the body of every non-2xx HTTP response.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Fields []seizure.FieldError `json:"fields,omitempty"`
}
