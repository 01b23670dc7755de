package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parley/internal/config"
	"parley/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchStarted(context.Background(), 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "batch started",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchStarted(context.Background(), 3)
			},
			expectTitle:   "Parley - Batch Started",
			expectMessage: "Started scraping 3 sites",
			expectTags:    "parley,batch,started",
		},
		{
			name: "batch completed clean",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), 3, 0, 90*time.Second)
			},
			expectTitle:   "Parley - Batch Complete",
			expectMessage: "Batch complete: 3 sites scraped in 1m30s",
			expectTags:    "parley,batch,completed",
		},
		{
			name: "batch completed with failures",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), 2, 1, time.Minute)
			},
			expectTitle:   "Parley - Batch Complete (with errors)",
			expectMessage: "Batch complete: 2 succeeded, 1 failed in 1m0s",
			expectTags:    "parley,batch,completed",
		},
		{
			name: "session created",
			send: func(svc notifications.Service) error {
				return svc.NotifySessionCreated(context.Background(), "Acme.example", "https://tavus.daily.co/c-1")
			},
			expectTitle:   "Parley - Session Ready",
			expectMessage: "Session ready: Acme.example\nhttps://tavus.daily.co/c-1",
			expectTags:    "parley,session,created",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("map failed"), "scrape")
			},
			expectTitle:    "Parley - Error",
			expectMessage:  "Error with scrape: map failed",
			expectTags:     "parley,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.BatchEvents = false
	cfg.Notifications.SessionEvents = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchStarted(context.Background(), 1); err != nil {
		t.Fatalf("disabled batch event errored: %v", err)
	}
	if err := svc.NotifySessionCreated(context.Background(), "x", "y"); err != nil {
		t.Fatalf("disabled session event errored: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), ""); err != nil {
		t.Fatalf("disabled error event errored: %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
