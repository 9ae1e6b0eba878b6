package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"minimill/internal/config"
)

const userAgent = "minimill/0.1.0"

// Event names a job milestone worth telling the user about.
type Event string

const (
	EventJobStarted   Event = "job_started"
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries the values an event message is rendered from. Recognised
// keys: jobId, file, files, mode, error, duration and email (bool, request an
// email copy).
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		email:    strings.TrimSpace(cfg.Notifications.Email),
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	email    bool
}

type ntfyService struct {
	endpoint string
	email    string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	file := payload.stringValue("file")
	if count := payload.intValue("files"); count > 1 {
		file = fmt.Sprintf("%s (+%d more)", file, count-1)
	}
	email := payload.boolValue("email")
	switch event {
	case EventJobStarted:
		return message{
			title: "minimill - Processing Started",
			body:  fmt.Sprintf("Processing %s in %s mode", file, payload.stringValue("mode")),
			tags:  []string{"minimill", "job", "started"},
		}, true
	case EventJobCompleted:
		body := fmt.Sprintf("Processing complete: %s", file)
		if d := payload.stringValue("duration"); d != "" {
			body = fmt.Sprintf("%s in %s", body, d)
		}
		return message{
			title:    "minimill - Complete",
			body:     body,
			tags:     []string{"minimill", "job", "completed"},
			priority: "high",
			email:    email,
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("Processing failed: %s", file)
		if reason := payload.stringValue("error"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "minimill - Failed",
			body:     body,
			tags:     []string{"minimill", "error", "alert"},
			priority: "high",
			email:    email,
		}, true
	case EventTest:
		return message{
			title:    "minimill - Test",
			body:     "Notification system test",
			tags:     []string{"minimill", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
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
	if msg.email && n.email != "" {
		req.Header.Set("Email", n.email)
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

func (p Payload) stringValue(key string) string {
	if v, ok := p[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func (p Payload) intValue(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) boolValue(key string) bool {
	v, _ := p[key].(bool)
	return v
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
