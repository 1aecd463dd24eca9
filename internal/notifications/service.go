package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"skysort/internal/config"
)

const userAgent = "Skysort-Go/0.1.0"

// Event enumerates the notification triggers the pipeline can raise.
type Event string

const (
	EventBatchResolved    Event = "batch_resolved"
	EventBatchNeedsManual Event = "batch_needs_manual"
	EventBatchError       Event = "batch_error"
	EventMediaDetected    Event = "media_detected"
	EventTest             Event = "test"
)

// Payload carries the per-event string fields used to render the message.
type Payload map[string]string

func (p Payload) get(key string) string {
	return strings.TrimSpace(p[key])
}

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.Notifications.RequestTimeout()},
		enabled: map[Event]bool{
			EventBatchResolved:    cfg.Notifications.NotifyResolved,
			EventBatchNeedsManual: cfg.Notifications.NotifyNeedsManual,
			EventBatchError:       cfg.Notifications.NotifyErrors,
			EventMediaDetected:    cfg.Notifications.NotifyMediaDetected,
			EventTest:             true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := n.render(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBatchResolved:
		folder := payload.get("folder")
		files := payload.get("files")
		body := fmt.Sprintf("Batch resolved: %s files sorted into %s", files, folder)
		if files == "" {
			body = fmt.Sprintf("Batch resolved into %s", folder)
		}
		return message{
			title: "Skysort - Batch Resolved",
			body:  body,
			tags:  []string{"skysort", "batch", "resolved"},
		}, true
	case EventBatchNeedsManual:
		reason := payload.get("reason")
		if reason == "" {
			reason = "unknown"
		}
		body := fmt.Sprintf("Manual review required (%s)", reason)
		if detail := payload.get("detail"); detail != "" {
			body = fmt.Sprintf("%s: %s", body, detail)
		}
		return message{
			title:    "Skysort - Manual Review",
			body:     body,
			tags:     []string{"skysort", "batch", "review"},
			priority: "high",
		}, true
	case EventBatchError:
		var builder strings.Builder
		builder.WriteString("Error")
		if folder := payload.get("folder"); folder != "" {
			builder.WriteString(" analyzing ")
			builder.WriteString(folder)
		}
		builder.WriteString(": ")
		if errText := payload.get("error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Skysort - Error",
			body:     builder.String(),
			tags:     []string{"skysort", "error", "alert"},
			priority: "high",
		}, true
	case EventMediaDetected:
		mount := payload.get("mount")
		body := fmt.Sprintf("Media detected: %s", mount)
		if label := payload.get("label"); label != "" {
			body = fmt.Sprintf("%s (%s)", body, label)
		}
		return message{
			title: "Skysort - Media Detected",
			body:  body,
			tags:  []string{"skysort", "media", "detected"},
		}, true
	case EventTest:
		return message{
			title:    "Skysort - Test",
			body:     "Notification system test",
			tags:     []string{"skysort", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
