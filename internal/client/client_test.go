package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
)

func fastClient(url string) *Client {
	c := New(url)
	c.RetryDelay = time.Millisecond
	c.MaxRetryDelay = 5 * time.Millisecond
	return c
}

func TestNew(t *testing.T) {
	c := New("http://192.168.4.16:8080/")
	if c.BaseURL != "http://192.168.4.16:8080" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", c.BaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout != DefaultTimeout {
		t.Error("HTTPClient should use DefaultTimeout")
	}
	c.SetTimeout(time.Second)
	if c.HTTPClient.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", c.HTTPClient.Timeout)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(capture.State{
			Live:     &capture.LiveState{SessionID: "abc", Status: capture.StatusRunning, Frames: 12},
			Queued:   []string{},
			Finished: []string{"old"},
		})
	}))
	defer server.Close()

	st, err := fastClient(server.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Live == nil || st.Live.SessionID != "abc" || st.Live.Frames != 12 {
		t.Errorf("Status().Live = %+v", st.Live)
	}
	if len(st.Finished) != 1 || st.Finished[0] != "old" {
		t.Errorf("Status().Finished = %v", st.Finished)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(analysis.Report{SessionID: "abc", Final: true})
	}))
	defer server.Close()

	r, err := fastClient(server.URL).CaptureReport(context.Background(), "abc")
	if err != nil {
		t.Fatalf("CaptureReport() error = %v", err)
	}
	if r.SessionID != "abc" || !r.Final {
		t.Errorf("CaptureReport() = %+v", r)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no live capture session"}`))
	}))
	defer server.Close()

	_, err := fastClient(server.URL).Report(context.Background())
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Report() error = %v, want *Error", err)
	}
	if e.Type != ErrTypeHTTP || e.StatusCode != http.StatusNotFound {
		t.Errorf("error = %+v, want HTTP 404", e)
	}
	if e.Message != "no live capture session" {
		t.Errorf("Message = %q, want the server error body", e.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want 404", StatusCode(err))
	}
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/api/capture/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	_, err := fastClient(server.URL).Start(context.Background())
	if StatusCode(err) != http.StatusConflict {
		t.Fatalf("Start() error = %v, want 409", err)
	}
	if !IsRetryable(err) {
		t.Error("409 should be marked retryable")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(analysis.Report{SessionID: "abc", Final: true, Summary: analysis.Summary{Frames: 2}})
	}))
	defer server.Close()

	r, err := fastClient(server.URL).Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if r.Summary.Frames != 2 {
		t.Errorf("Stop().Summary.Frames = %d, want 2", r.Summary.Frames)
	}
}

func TestParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	_, err := fastClient(server.URL).Captures(context.Background())
	var e *Error
	if !errors.As(err, &e) || e.Type != ErrTypeParse {
		t.Fatalf("Captures() error = %v, want parse error", err)
	}
	if IsRetryable(err) {
		t.Error("parse errors should not be retried")
	}
	if len(Troubleshooting(err, server.URL)) == 0 {
		t.Error("parse errors should carry a hint")
	}
}

func TestConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	c := fastClient("http://" + addr)
	c.MaxRetries = 1
	_, err = c.Status(context.Background())

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Status() error = %v, want *Error", err)
	}
	if e.Type != ErrTypeConnectionRefused {
		t.Errorf("Type = %v, want %v", e.Type, ErrTypeConnectionRefused)
	}
	if hints := Troubleshooting(err, c.BaseURL); len(hints) == 0 {
		t.Error("connection refused should carry hints")
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrorType(99), "ErrorType(99)"},
	}
	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.et, got, tt.want)
		}
	}
}
