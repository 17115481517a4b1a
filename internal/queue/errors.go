package queue

import (
	"context"
	"errors"
)

var (
	// ErrNilPayload is returned by Enqueue when no payload is supplied.
	ErrNilPayload = errors.New("queue: payload is required")
	// ErrInvalidPayload is returned by Enqueue when the payload is not valid JSON.
	ErrInvalidPayload = errors.New("queue: payload must be valid JSON")
	// ErrCorruptState marks stored queue data that could not be decoded.
	ErrCorruptState = errors.New("queue: stored state is corrupt")
)

// ErrorClassifier allows errors to declare their classification for failure
// handling. Errors that implement this interface decide whether a failed
// submission is retried automatically or set aside for manual resolution.
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	// Known kinds that map to FailurePermanent: "validation", "rejected",
	// "not_found", "configuration". All other kinds are transient.
	ErrorKind() string
}

// ClassifyFailure maps a submission error to the failure kind recorded on the
// entry. Unclassified errors, timeouts, and cancellations are transient so a
// later pass retries them.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case "validation", "rejected", "not_found", "configuration":
			return FailurePermanent
		}
	}
	return FailureTransient
}
