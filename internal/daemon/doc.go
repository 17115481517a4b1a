// Package daemon coordinates the long-running fieldsync process.
//
// It wires the durable store, queue engine, connectivity monitor, link
// watcher and sync driver into one lifecycle, guarded by a flock on the state
// directory so only one process owns the queue. The daemon also serves the
// local HTTP API the app's view layer talks to.
package daemon
