package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEntryID is the standardized structured logging key for queue entry local IDs.
	FieldEntryID = "entry_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the event a log line records (e.g. sync_completed).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldFailureKind records transient/permanent classification.
	FieldFailureKind = "failure_kind"
	// FieldAttempts counts submissions of a queue entry.
	FieldAttempts = "attempts"
)

type contextKey int

const (
	entryIDKey contextKey = iota
	correlationIDKey
)

// WithEntryID tags ctx with a queue entry local ID.
func WithEntryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, entryIDKey, id)
}

// WithCorrelationID tags ctx with a request identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := ctx.Value(entryIDKey).(string); ok && strings.TrimSpace(id) != "" {
		fields = append(fields, slog.String(FieldEntryID, id))
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok && strings.TrimSpace(id) != "" {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(args(fields)...)
}
