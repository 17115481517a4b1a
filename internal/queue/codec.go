package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StorageKey is the fixed namespace key the queue is stored under.
const StorageKey = "offline_queue"

var jsonNull = []byte("null")

// EncodeEntries serializes entries to the persisted JSON array layout.
func EncodeEntries(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	return data, nil
}

// DecodeEntries parses the persisted layout and drops records that cannot be
// resubmitted: missing local IDs, empty payloads, synced leftovers, and
// duplicate IDs after the first occurrence. Failed records without a kind are
// treated as transient. The number of dropped records is returned alongside.
func DecodeEntries(data []byte) ([]Entry, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return []Entry{}, 0, nil
	}

	var raw []Entry
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	dropped := 0
	for _, entry := range raw {
		if entry.LocalID == "" || !hasPayload(entry.Payload) {
			dropped++
			continue
		}
		if _, dup := seen[entry.LocalID]; dup {
			dropped++
			continue
		}
		status, ok := ParseStatus(string(entry.Status))
		if !ok {
			status = StatusPending
		}
		if status == StatusSynced {
			dropped++
			continue
		}
		entry.Status = status
		if status == StatusFailed {
			if kind, ok := ParseFailureKind(string(entry.FailureKind)); ok {
				entry.FailureKind = kind
			} else {
				entry.FailureKind = FailureTransient
			}
		} else {
			entry.Error = ""
			entry.FailureKind = ""
		}
		seen[entry.LocalID] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, dropped, nil
}

func hasPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, jsonNull)
}
