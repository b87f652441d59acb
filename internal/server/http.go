package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/app"
	"github.com/petems/voiceflow/internal/command"
	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/metrics"
	"github.com/petems/voiceflow/internal/stream"
)

// StatusProvider reports the current pipeline state
type StatusProvider interface {
	Status() app.Status
}

// HTTPServer exposes health, status, Prometheus metrics and a websocket
// stream of pipeline events.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
	log      zerolog.Logger
	status   StatusProvider
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	hub      *Hub

	startTime time.Time
}

// New creates the server. gatherer may be nil, in which case /metrics is
// not served.
func New(cfg config.ServerConfig, status StatusProvider, m *metrics.Metrics, gatherer prometheus.Gatherer, log zerolog.Logger) *HTTPServer {
	log = log.With().Str("component", "http").Logger()
	h := &HTTPServer{
		log:       log,
		status:    status,
		metrics:   m,
		gatherer:  gatherer,
		hub:       NewHub(cfg.AllowedOrigins, log),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return h
}

func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/events", h.hub.ServeWS)

	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the route table, mainly for tests
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// withMetrics wraps an HTTP handler with request counting
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handle forwards pipeline events to websocket clients
func (h *HTTPServer) Handle(e stream.Event) {
	msg := command.EventMessage(e)
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode event")
		return
	}
	h.hub.Broadcast(data)
}

// Start binds the listen address and serves in the background
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}
	h.listener = ln
	h.log.Info().Str("address", ln.Addr().String()).Msg("Starting HTTP API server")

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Addr is the bound address once Start has succeeded
func (h *HTTPServer) Addr() string {
	if h.listener == nil {
		return h.server.Addr
	}
	return h.listener.Addr().String()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.log.Info().Msg("Stopping HTTP API server")
	h.hub.Close()
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"clients":   h.hub.Len(),
	})
}

func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.status.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
