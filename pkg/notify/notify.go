package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds a single delivery
const DefaultTimeout = 5 * time.Second

// Assigned tells a worker a new assignment is waiting
type Assigned struct {
	WorkerID     string    `json:"worker_id"`
	AssignmentID string    `json:"assignment_id"`
	DueAt        time.Time `json:"due_at"`
}

// Dispatcher delivers assignment notifications
type Dispatcher interface {
	NotifyAssigned(ctx context.Context, n Assigned) error
}

// Fire delivers n in the background. Failures are logged and reported to
// onFail but never reach the caller.
func Fire(d Dispatcher, n Assigned, logger *slog.Logger, onFail func()) {
	if d == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := d.NotifyAssigned(ctx, n); err != nil {
			logger.Warn("assignment notification failed",
				"worker_id", n.WorkerID, "assignment_id", n.AssignmentID, "error", err)
			if onFail != nil {
				onFail()
			}
		}
	}()
}

// LogDispatcher writes notifications to the log
type LogDispatcher struct {
	Logger *slog.Logger
}

// NotifyAssigned logs the notification
func (l *LogDispatcher) NotifyAssigned(_ context.Context, n Assigned) error {
	l.Logger.Info("assignment notification",
		"worker_id", n.WorkerID, "assignment_id", n.AssignmentID, "due_at", n.DueAt)
	return nil
}

// WebhookDispatcher POSTs notifications as JSON to a URL
type WebhookDispatcher struct {
	URL    string
	Client *http.Client
}

// NewWebhookDispatcher creates a dispatcher posting to url
func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{URL: url, Client: &http.Client{Timeout: DefaultTimeout}}
}

// NotifyAssigned posts the notification
func (w *WebhookDispatcher) NotifyAssigned(ctx context.Context, n Assigned) error {
	body, err := json.Marshal(map[string]any{"event": "assignment.created", "data": n})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// MemoryDispatcher stores notifications in memory for inspection/testing
type MemoryDispatcher struct {
	mu   sync.Mutex
	sent []Assigned
	// Err, when set, is returned from every call
	Err error
	// Sent receives each notification when non-nil
	Sent chan Assigned
}

// NotifyAssigned records the notification
func (m *MemoryDispatcher) NotifyAssigned(_ context.Context, n Assigned) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	if m.Sent != nil {
		m.Sent <- n
	}
	return m.Err
}

// Notifications returns a copy of what has been sent so far
func (m *MemoryDispatcher) Notifications() []Assigned {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Assigned, len(m.sent))
	copy(out, m.sent)
	return out
}
