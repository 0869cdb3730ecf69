package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakePinger is a Pinger that returns err after delay.
type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(pingers ...Pinger) *Server {
	s := newTestServer()
	s.pingers = pingers
	return s
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantOK    []bool
	}{
		{
			name:      "no pingers",
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{},
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "qdrant"},
				&fakePinger{name: "openai"},
			},
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{true, true},
		},
		{
			name: "qdrant down",
			pingers: []Pinger{
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
				&fakePinger{name: "openai"},
			},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{false, true},
		},
		{
			name: "all down",
			pingers: []Pinger{
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
				&fakePinger{name: "openai", err: errors.New("401")},
			},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{false, false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newReadyTestServer(tc.pingers...)
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantCode, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("checks = %d, want %d", len(resp.Checks), len(tc.wantOK))
			}
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d name = %q, want registration order", i, c.Name)
				}
				if c.OK != tc.wantOK[i] {
					t.Errorf("check %q ok = %v, want %v", c.Name, c.OK, tc.wantOK[i])
				}
				if !c.OK && c.Error == "" {
					t.Errorf("check %q: failing probe must carry an error", c.Name)
				}
			}
		})
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	const delay = 200 * time.Millisecond
	s := newReadyTestServer(
		&fakePinger{name: "a", delay: delay},
		&fakePinger{name: "b", delay: delay},
		&fakePinger{name: "c", delay: delay},
	)

	start := time.Now()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	elapsed := time.Since(start)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if elapsed >= 3*delay {
		t.Errorf("probes took %v, expected them to overlap", elapsed)
	}
}
