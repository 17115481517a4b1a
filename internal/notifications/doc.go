// Package notifications pushes queue events to an ntfy topic.
//
// Rejected entries and sync summaries are published when enabled in the
// [notifications] config section. Without a topic the service is a no-op, so
// callers publish unconditionally.
package notifications
