// Package logs reads the daemon's log file for `fieldsync logs`.
//
// Tail returns the last N lines or everything after a byte offset, and can
// poll for new lines in follow mode. Offsets let the CLI resume across IPC
// calls without holding the file open.
package logs
