package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
)

const (
	userAgent     = "fieldsync/1.0"
	seizuresPath  = "/api/seizures"
	maxErrorBytes = 8 << 10
)

// Record is the server's view of a created seizure.
type Record struct {
	ID               string    `json:"id"`
	SlaughterhouseID string    `json:"slaughterhouse_id"`
	InspectorID      string    `json:"inspector_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Client talks to the remote seizure API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client from the [api] config section.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.API.Token),
		http:    &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(logger, "remote"),
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Create submits payload as a new seizure. A 409 Conflict counts as
// accepted: it assumes the server deduplicates on Idempotency-Key and
// answers 409 for a local ID it already stored. A server that ignores the
// header never sends 409 for a create, and a retry after a lost response
// then stores the seizure twice.
func (c *Client) Create(ctx context.Context, localID string, payload json.RawMessage) error {
	_, err := c.CreateRecord(ctx, localID, payload)
	return err
}

// CreateRecord is Create that also returns the decoded server record when
// the response carries one.
func (c *Client) CreateRecord(ctx context.Context, localID string, payload json.RawMessage) (*Record, error) {
	if c.baseURL == "" {
		return nil, &Error{Kind: KindConfiguration, Detail: "api.base_url is not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+seizuresPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Idempotency-Key", localID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("submit seizure: %w", ctxErr)
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	c.logger.Debug("seizure submitted",
		logging.EntryID(localID),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if readErr != nil || len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		var record Record
		if err := json.Unmarshal(body, &record); err != nil {
			c.logger.Debug("seizure response not decodable", logging.EntryID(localID), logging.Error(err))
			return nil, nil
		}
		return &record, nil
	default:
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(body),
			Kind:       kindForStatus(resp.StatusCode),
		}
	}
}

// Ping checks that the API host answers HTTP at all. Any status counts; only
// transport failures are errors.
func (c *Client) Ping(ctx context.Context) (int, error) {
	if c.baseURL == "" {
		return 0, &Error{Kind: KindConfiguration, Detail: "api.base_url is not configured"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/", nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
	return resp.StatusCode, nil
}

// IsKind reports whether err is a remote *Error of the given kind.
func IsKind(err error, kind string) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Kind == kind
}
