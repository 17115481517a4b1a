package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Error kinds reported by ErrorKind. validation, rejected, not_found and
// configuration are permanent for the queue; the rest are retried.
const (
	KindValidation    = "validation"
	KindRejected      = "rejected"
	KindNotFound      = "not_found"
	KindConfiguration = "configuration"
	KindAuth          = "auth"
	KindThrottled     = "throttled"
	KindServer        = "server"
	KindNetwork       = "network"
)

// Error is a failed submission.
type Error struct {
	StatusCode int
	Detail     string
	Kind       string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	} else {
		b.WriteString(e.Kind)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind classifies the failure.
func (e *Error) ErrorKind() string { return e.Kind }

// kindForStatus maps a non-success HTTP status to an error kind.
func kindForStatus(code int) string {
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindValidation
	case code == http.StatusNotFound || code == http.StatusGone:
		return KindNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return KindThrottled
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindRejected
	default:
		return KindServer
	}
}

// parseDetail extracts a message from a FastAPI style error body, either
// {"detail": "text"} or {"detail": [{"loc": [...], "msg": "..."}]}.
func parseDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return truncate(trimmed, 200)
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			field := locField(item.Loc)
			if field != "" {
				parts = append(parts, field+": "+item.Msg)
			} else {
				parts = append(parts, item.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return truncate(string(envelope.Detail), 200)
}

func locField(loc []any) string {
	var parts []string
	for _, p := range loc {
		s := fmt.Sprint(p)
		if s == "body" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
