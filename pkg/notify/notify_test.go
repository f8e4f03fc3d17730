package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookDispatcher(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL)
	n := Assigned{WorkerID: "w1", AssignmentID: "a1", DueAt: time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)}
	require.NoError(t, d.NotifyAssigned(context.Background(), n))

	body := <-got
	assert.Equal(t, "assignment.created", body["event"])
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, "a1", data["assignment_id"])
}

func TestWebhookDispatcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookDispatcher(srv.URL).NotifyAssigned(context.Background(), Assigned{WorkerID: "w1"})
	assert.ErrorContains(t, err, "502")
}

func TestFire(t *testing.T) {
	m := &MemoryDispatcher{Sent: make(chan Assigned, 1)}
	Fire(m, Assigned{WorkerID: "w1", AssignmentID: "a1"}, quietLogger(), nil)

	select {
	case n := <-m.Sent:
		assert.Equal(t, "a1", n.AssignmentID)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Len(t, m.Notifications(), 1)
}

func TestFire_ReportsFailure(t *testing.T) {
	failed := make(chan struct{}, 1)
	m := &MemoryDispatcher{Err: errors.New("smtp down")}
	Fire(m, Assigned{WorkerID: "w1"}, quietLogger(), func() { failed <- struct{}{} })

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("failure callback not called")
	}

	// nil dispatchers are ignored
	Fire(nil, Assigned{}, quietLogger(), nil)
}
