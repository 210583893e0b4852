// Package httpserver exposes the HTTP message routes: /message, /data,
// /ai, /health and the root info page. Handlers are stateless; concurrency
// is delegated to net/http.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"syscall"

	"github.com/uevarest/gateway/internal/config"
	"github.com/uevarest/gateway/pkg/aibridge"
	"github.com/uevarest/gateway/pkg/clientver"
	"github.com/uevarest/gateway/pkg/events"
	"github.com/uevarest/gateway/pkg/msglog"
)

const logPrefix = "httpserver:server"

const (
	serverName    = "UE VaRest Gateway"
	serverVersion = "1.0.0"
)

// Server is the HTTP message service.
type Server struct {
	cfg   *config.Config
	ai    aibridge.Client
	pub   events.Publisher
	store *msglog.Store
	gate  *clientver.Gate
	srv   *http.Server
}

// New creates the HTTP message service. ai defaults to the unconfigured
// bridge and pub to a no-op publisher; store and gate may be nil.
func New(cfg *config.Config, ai aibridge.Client, pub events.Publisher, store *msglog.Store, gate *clientver.Gate) *Server {
	if ai == nil {
		ai = aibridge.Unconfigured{}
	}
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	s := &Server{cfg: cfg, ai: ai, pub: pub, store: store, gate: gate}
	s.srv = &http.Server{Addr: cfg.HTTPAddr, Handler: s.Handler()}
	return s
}

// Handler returns the route mux. Exposed for httptest-based tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/ai", s.handleAI)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe binds and serves until Shutdown. A bind failure is fatal
// for this instance; there is no retry or port fallback.
func (s *Server) ListenAndServe() error {
	slog.Info(fmt.Sprintf("%s - HTTP message service listening on %s", logPrefix, s.cfg.HTTPAddr))
	err := s.srv.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		slog.Error(fmt.Sprintf("%s - address %s is already in use, check for other instances", logPrefix, s.cfg.HTTPAddr))
	}
	return fmt.Errorf("%s - serve on %s: %w", logPrefix, s.cfg.HTTPAddr, err)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// writeJSON encodes v with the given status code. Encoding failures are
// logged; by then the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
	}
}
