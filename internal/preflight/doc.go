// Package preflight provides the readiness checks behind `fieldsync doctor`.
//
// Checks cover the state directory, free disk space for the queue, the
// records API and the connectivity probe. Each returns a Result rather than
// an error so the CLI can print every outcome in one table.
package preflight
