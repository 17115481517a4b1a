// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It turns queue entries, status snapshots and sync results into
// transport-friendly DTOs the app's view layer and the CLI can render without
// importing internal types.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds in
// UTC. Payloads pass through as json.RawMessage so seizures are never
// re-encoded on the way out.
package api
