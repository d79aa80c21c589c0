package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webrtc-relay/internal/config"
	"webrtc-relay/internal/metrics"
)

func newTestConfig(timeout, healthTimeout int) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{
			TimeoutSeconds:       timeout,
			HealthTimeoutSeconds: healthTimeout,
			IdleConnections:      10,
		},
	}
}

func TestBackendClient_DoStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBackendClient(newTestConfig(10, 5), logger, nil)

	resp, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/test", http.Header{}, nil, 0)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Status != "200 OK" {
		t.Errorf("Status = %q, want %q", resp.Status, "200 OK")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(body), `{"status":"ok"}`)
	}
}

func TestBackendClient_DoStream_ContentLength(t *testing.T) {
	var gotLength int64
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBackendClient(newTestConfig(10, 5), logger, nil)

	// A plain io.Reader carries no length of its own.
	body := io.MultiReader(strings.NewReader("hello "), strings.NewReader("world"))
	resp, err := c.DoStream(context.Background(), http.MethodPost, srv.URL+"/offer", http.Header{}, body, 11)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	_ = resp.Body.Close()

	if gotLength != 11 {
		t.Errorf("ContentLength = %d, want %d", gotLength, 11)
	}
	if gotBody != "hello world" {
		t.Errorf("body = %q, want %q", gotBody, "hello world")
	}
}

func TestBackendClient_DoStream_NoRedirectFollow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBackendClient(newTestConfig(10, 5), logger, nil)

	resp, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/offer", http.Header{}, nil, 0)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/elsewhere" {
		t.Errorf("Location = %q, want %q", loc, "/elsewhere")
	}
}

func TestBackendClient_DoStream_Error(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	c := NewBackendClient(newTestConfig(1, 1), logger, m)

	_, err := c.DoStream(context.Background(), http.MethodGet, "http://127.0.0.1:1/nonexistent", http.Header{}, nil, 0)
	if err == nil {
		t.Fatal("DoStream() expected error for unreachable host, got nil")
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "webrtc_relay_backend_errors_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected webrtc_relay_backend_errors_total to be recorded")
	}
}

func TestBackendClient_DoStream_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate a slow backend; the request should be canceled before this completes.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBackendClient(newTestConfig(30, 5), logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.DoStream(ctx, http.MethodGet, srv.URL+"/slow", http.Header{}, nil, 0)
	if err == nil {
		t.Fatal("DoStream() expected error for canceled context, got nil")
	}
}

func TestBackendClient_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBackendClient(newTestConfig(10, 5), logger, nil)

	code, body, err := c.Probe(context.Background(), srv.URL+"/health")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body != `{"status":"error"}` {
		t.Errorf("body = %q, want %q", body, `{"status":"error"}`)
	}
}

func TestBackendClient_Probe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBackendClient(newTestConfig(30, 1), logger, nil)

	start := time.Now()
	_, _, err := c.Probe(context.Background(), srv.URL+"/health")
	if err == nil {
		t.Fatal("Probe() expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Probe() took %v, want it bounded by the health timeout", elapsed)
	}
}
