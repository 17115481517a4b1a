// Package remote submits queued seizures to the MeatSafe REST API.
//
// Client.Create posts one payload to /api/seizures with the inspector's
// bearer token and an Idempotency-Key derived from the entry's local ID.
// Failures come back as *Error values whose ErrorKind separates rejections
// that will never succeed from outages worth retrying.
package remote
