package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/app"
	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/metrics"
	"github.com/petems/voiceflow/internal/stream"
)

type staticStatus app.Status

func (s staticStatus) Status() app.Status { return app.Status(s) }

func newTestServer(t *testing.T) (*HTTPServer, *httptest.Server, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg := config.ServerConfig{Addr: "127.0.0.1:0", AllowedOrigins: []string{"https://dashboard.example.test"}}
	h := New(cfg, staticStatus{State: "recording", SessionID: "abc", Engine: "openai", Model: "whisper-1"}, m, reg, zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(func() {
		h.hub.Close()
		srv.Close()
	})
	return h, srv, m
}

func TestHealthAndStatus(t *testing.T) {
	_, srv, m := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health["status"] != "healthy" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, health)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	var st app.Status
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.State != "recording" || st.SessionID != "abc" || st.Engine != "openai" {
		t.Errorf("unexpected status %+v", st)
	}

	resp, err = http.Post(srv.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/status", "200")); got != 1 {
		t.Errorf("expected one counted GET /status, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/status", "405")); got != 1 {
		t.Errorf("expected one counted POST /status, got %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv, m := newTestServer(t)
	m.RecordChunkExtracted()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "voiceflow_chunks_extracted_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}

func TestEventsWebsocket(t *testing.T) {
	h, srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Handle(stream.ResultEvent{Seq: 7, Text: "over the wire", Final: false})
	h.Handle(stream.StatusEvent{Status: stream.StatusRecordingStopped})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second: %v", err)
	}

	if first["result"] != "over the wire" || first["seq"] != float64(7) {
		t.Errorf("unexpected result message %v", first)
	}
	if second["status"] != "recording stopped" {
		t.Errorf("unexpected status message %v", second)
	}
}

func TestEventsRejectsForeignOrigin(t *testing.T) {
	h, srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected a foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
	if h.hub.Len() != 0 {
		t.Errorf("rejected client should not be registered")
	}

	for _, origin := range []string{"http://localhost:3000", "http://127.0.0.1:8765", "https://dashboard.example.test/"} {
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{origin}})
		if err != nil {
			t.Errorf("origin %s should be accepted: %v", origin, err)
			continue
		}
		conn.Close()
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://Dashboard.example.test"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://[::1]:8080", true},
		{"http://127.0.0.2", true},
		{"https://dashboard.example.test", true},
		{"https://evil.example.com", false},
		{"http://localhost.evil.example.com", false},
		{"null", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8765/events", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestStartAndStop(t *testing.T) {
	h := New(config.ServerConfig{Addr: "127.0.0.1:0"}, staticStatus{State: "idle"}, nil, nil, zerolog.Nop())
	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + h.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get("http://" + h.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/metrics without a gatherer should 404, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
