package reachability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the reachability state over HTTP for status consumers.
type Server struct {
	monitor *Monitor
	server  *http.Server
}

// NewServer creates the status server.
func NewServer(monitor *Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /probe", s.handleProbe)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, lastChecked := s.monitor.Status()

	response := map[string]string{"status": string(state)}
	if !lastChecked.IsZero() {
		response["last_checked"] = lastChecked.UTC().Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if state == StateLost {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(response)
}

// handleProbe is the manual re-check hook for status consumers.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	ok := s.monitor.ProbeNow(r.Context())
	state, _ := s.monitor.Status()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"reachable": ok,
		"status":    string(state),
	})
}
