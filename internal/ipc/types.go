package ipc

import (
	"encoding/json"

	"fieldsync/internal/api"
	"fieldsync/internal/seizure"
)

// serviceName is the net/rpc receiver name.
const serviceName = "Fieldsync"

// QueueItem mirrors the HTTP API queue DTO.
type QueueItem = api.QueueItem

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon status as reported over HTTP.
type StatusResponse = api.DaemonStatus

// ListRequest filters the queue by status. "rejected" selects permanent
// failures.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse contains queue entries in queue order.
type ListResponse struct {
	Items []QueueItem `json:"items"`
}

// ShowRequest fetches one entry by local ID.
type ShowRequest struct {
	LocalID string `json:"localId"`
}

// ShowResponse carries the requested entry.
type ShowResponse struct {
	Item QueueItem `json:"item"`
}

// EnqueueRequest carries a raw seizure document.
type EnqueueRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// EnqueueResponse holds the queued entry, or the field errors that kept the
// seizure out of the queue.
type EnqueueResponse struct {
	Item   *QueueItem           `json:"item,omitempty"`
	Fields []seizure.FieldError `json:"fields,omitempty"`
}

// SyncRequest runs a sync pass now.
type SyncRequest struct{}

// SyncResponse summarizes the pass.
type SyncResponse = api.SyncResult

// RetryRequest lists entries to reset. Empty resets every failed entry.
type RetryRequest struct {
	LocalIDs []string `json:"localIds"`
}

// RetryResponse reports how many entries went back to pending.
type RetryResponse = api.RetryResponse

// DiscardRequest lists entries to remove.
type DiscardRequest struct {
	LocalIDs []string `json:"localIds"`
}

// DiscardResponse reports how many entries were removed.
type DiscardResponse = api.DiscardResponse

// LogTailRequest asks for daemon log lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"waitMillis"`
}

// LogTailResponse returns lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest sends a test ntfy message.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
