package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"minimill/internal/config"
	"minimill/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{"file": "a.mp4"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectEmail    string
	}{
		{
			name:          "started",
			event:         notifications.EventJobStarted,
			payload:       notifications.Payload{"file": "clip.mp4", "mode": "6mm"},
			expectTitle:   "minimill - Processing Started",
			expectMessage: "Processing clip.mp4 in 6mm mode",
			expectTags:    "minimill,job,started",
		},
		{
			name:           "completed with email",
			event:          notifications.EventJobCompleted,
			payload:        notifications.Payload{"file": "clip.mp4", "files": 3, "duration": "0:31", "email": true},
			expectTitle:    "minimill - Complete",
			expectMessage:  "Processing complete: clip.mp4 (+2 more) in 0:31",
			expectTags:     "minimill,job,completed",
			expectPriority: "high",
			expectEmail:    "user@example.com",
		},
		{
			name:           "failed",
			event:          notifications.EventJobFailed,
			payload:        notifications.Payload{"file": "clip.mp4", "error": "Simulated processing error"},
			expectTitle:    "minimill - Failed",
			expectMessage:  "Processing failed: clip.mp4\nSimulated processing error",
			expectTags:     "minimill,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				email    string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.email = r.Header.Get("Email")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.Email = "user@example.com"
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", captured.title, tc.expectTitle)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("body = %q, want %q", captured.body, tc.expectMessage)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", captured.tags, tc.expectTags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", captured.priority, tc.expectPriority)
			}
			if captured.email != tc.expectEmail {
				t.Fatalf("email = %q, want %q", captured.email, tc.expectEmail)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for non-2xx ntfy response")
	}
}
