// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// The server owns the socket file for its lifetime and removes it on Close.
// Request and response types reuse the api DTOs so the CLI, the HTTP API and
// IPC callers all see the same shapes. Seizure validation failures travel in
// the response body rather than as RPC errors so field details survive the
// trip.
package ipc
