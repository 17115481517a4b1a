// Package queue owns the offline write queue: the in-memory Engine that is the
// authoritative list of unresolved entries, and the durable Store backends
// that persist that list on the device.
//
// Every mutation (enqueue, mark synced, mark failed, retry, discard) is applied
// under one lock together with its persistence write, so the stored list and
// the in-memory list agree after every change. Persistence failures are logged
// and swallowed; the in-memory state stays authoritative for the life of the
// process.
//
// The persisted layout is a single JSON array stored under StorageKey. The
// SQLite backend keeps it in a key/value table; the file backend writes it as
// one document. Schema changes bump schemaVersion in schema.go.
package queue
