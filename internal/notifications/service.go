package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reel/internal/config"
	"reel/internal/version"
)

var userAgent = "reel/" + version.Current.Short()

// Service is the notification surface used by the store handler and the
// workflow manager.
type Service interface {
	NotifyMediaCompleted(ctx context.Context, title string, outputs int) error
	NotifyTaskFailed(ctx context.Context, taskName, subject string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyMediaCompleted(ctx context.Context, title string, outputs int) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled"
	}
	noun := "outputs"
	if outputs == 1 {
		noun = "output"
	}
	return n.send(ctx, payload{
		title:   "Reel - Encoded",
		message: fmt.Sprintf("%s is ready (%d %s)", title, outputs, noun),
		tags:    []string{"reel", "encode", "completed"},
	})
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, taskName, subject string, err error) error {
	var builder strings.Builder
	builder.WriteString("Task ")
	builder.WriteString(strings.TrimSpace(taskName))
	if subject = strings.TrimSpace(subject); subject != "" {
		builder.WriteString(" for ")
		builder.WriteString(subject)
	}
	builder.WriteString(" failed: ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Reel - Task Failed",
		message:  builder.String(),
		tags:     []string{"reel", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Reel - Test",
		message:  "Notification system test",
		tags:     []string{"reel", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

type noopService struct{}

func (noopService) NotifyMediaCompleted(context.Context, string, int) error       { return nil }
func (noopService) NotifyTaskFailed(context.Context, string, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
