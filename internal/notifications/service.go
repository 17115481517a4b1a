package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
)

const userAgent = "fieldsync/1.0"

// Event identifies a notification type.
type Event string

const (
	EventEntryRejected Event = "entry_rejected"
	EventSyncCompleted Event = "sync_completed"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		rejections:  cfg.Notifications.Rejections,
		syncSummary: cfg.Notifications.SyncSummary,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	rejections  bool
	syncSummary bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEntryRejected:
		if !n.rejections {
			return message{}, false
		}
		body := fmt.Sprintf("Seizure %s was rejected by the server", shortID(payload.str("localId")))
		if reason := payload.str("reason"); reason != "" {
			body += ": " + reason
		}
		body += "\nRetry or discard it from the queue."
		return message{
			title:    "Fieldsync - Seizure Rejected",
			body:     body,
			tags:     []string{"fieldsync", "rejected", "warning"},
			priority: "high",
		}, true
	case EventSyncCompleted:
		if !n.syncSummary {
			return message{}, false
		}
		synced := payload.num("synced")
		failed := payload.num("failed")
		rejected := payload.num("rejected")
		title := "Fieldsync - Sync Complete"
		body := fmt.Sprintf("%d seizure(s) synced", synced)
		if failed+rejected > 0 {
			title = "Fieldsync - Sync Complete (with errors)"
			body = fmt.Sprintf("%d synced, %d failed, %d rejected", synced, failed, rejected)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"fieldsync", "sync", "completed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.str("context"); label != "" {
			b.WriteString(" during ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := payload.str("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Fieldsync - Error",
			body:     b.String(),
			tags:     []string{"fieldsync", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Fieldsync - Test",
			body:     "Notification system test",
			tags:     []string{"fieldsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) num(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
