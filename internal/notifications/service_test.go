package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"skysort/internal/config"
	"skysort/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBatchResolved, notifications.Payload{"folder": "Jane_Doe_abc"}); err != nil {
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
	}{
		{
			name:  "batch resolved",
			event: notifications.EventBatchResolved,
			payload: notifications.Payload{
				"folder": "Jane_Doe_1234",
				"files":  "6",
			},
			expectTitle:   "Skysort - Batch Resolved",
			expectMessage: "Batch resolved: 6 files sorted into Jane_Doe_1234",
			expectTags:    "skysort,batch,resolved",
		},
		{
			name:  "needs manual",
			event: notifications.EventBatchNeedsManual,
			payload: notifications.Payload{
				"reason": "ambiguous",
				"detail": "found 2 identity markers but 1 freefall runs; manual splitting required",
			},
			expectTitle:    "Skysort - Manual Review",
			expectMessage:  "Manual review required (ambiguous): found 2 identity markers but 1 freefall runs; manual splitting required",
			expectTags:     "skysort,batch,review",
			expectPriority: "high",
		},
		{
			name:  "batch error",
			event: notifications.EventBatchError,
			payload: notifications.Payload{
				"folder": "/footage/inbox/card01",
				"error":  "insufficient free space",
			},
			expectTitle:    "Skysort - Error",
			expectMessage:  "Error analyzing /footage/inbox/card01: insufficient free space",
			expectTags:     "skysort,error,alert",
			expectPriority: "high",
		},
		{
			name:  "media detected",
			event: notifications.EventMediaDetected,
			payload: notifications.Payload{
				"mount": "/media/sdcard",
				"label": "GOPRO",
			},
			expectTitle:   "Skysort - Media Detected",
			expectMessage: "Media detected: /media/sdcard (GOPRO)",
			expectTags:    "skysort,media,detected",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			payload:        nil,
			expectTitle:    "Skysort - Test",
			expectMessage:  "Notification system test",
			expectTags:     "skysort,test",
			expectPriority: "low",
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
			cfg.Notifications.RequestTimeoutSeconds = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
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

func TestNtfyServiceIgnoresDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.NotifyResolved = false
	cfg.Notifications.NotifyMediaDetected = false

	svc := notifications.NewService(&cfg)
	disabled := []notifications.Event{
		notifications.EventBatchResolved,
		notifications.EventMediaDetected,
	}
	for _, event := range disabled {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"folder": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}
