package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reel/internal/config"
	"reel/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	requests := make(chan captured, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected no-op service without a topic")
	}
	if err := svc.NotifyMediaCompleted(context.Background(), "Holiday", 2); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if notifications.Enabled(notifications.NewService(nil)) {
		t.Fatal("expected nil config to disable notifications")
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	server, requests := newCaptureServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if !notifications.Enabled(svc) {
		t.Fatal("expected ntfy service")
	}

	tests := []struct {
		name           string
		send           func() error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "media completed",
			send:          func() error { return svc.NotifyMediaCompleted(context.Background(), "Holiday Clip", 2) },
			expectTitle:   "Reel - Encoded",
			expectMessage: "Holiday Clip is ready (2 outputs)",
			expectTags:    "reel,encode,completed",
		},
		{
			name:          "single output",
			send:          func() error { return svc.NotifyMediaCompleted(context.Background(), " ", 1) },
			expectTitle:   "Reel - Encoded",
			expectMessage: "untitled is ready (1 output)",
			expectTags:    "reel,encode,completed",
		},
		{
			name: "task failed",
			send: func() error {
				return svc.NotifyTaskFailed(context.Background(), "encode_media", "media 7", errors.New("exit status 1"))
			},
			expectTitle:    "Reel - Task Failed",
			expectMessage:  "Task encode_media for media 7 failed: exit status 1",
			expectTags:     "reel,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func() error { return svc.TestNotification(context.Background()) },
			expectTitle:    "Reel - Test",
			expectMessage:  "Notification system test",
			expectTags:     "reel,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatalf("send: %v", err)
			}
			got := <-requests
			if got.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tt.expectTitle)
			}
			if got.message != tt.expectMessage {
				t.Fatalf("message = %q, want %q", got.message, tt.expectMessage)
			}
			if got.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tt.expectTags)
			}
			if got.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403: nope") {
		t.Fatalf("expected status error, got %v", err)
	}
}
