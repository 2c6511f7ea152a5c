// Package mockbackend is a scripted stand-in for the report backend: a REST
// trigger endpoint and the per-job socket. Tests run it under httptest; the
// CLI's "mock" command serves it for local development.
package mockbackend

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/reportwatch/logger"
	"github.com/teranos/reportwatch/version"
)

// ProtocolVersion is advertised in trigger responses unless overridden
const ProtocolVersion = version.Protocol

// Script describes what the socket does once open
type Script struct {
	// Frames are sent in order as text messages
	Frames []string
	// FrameDelay is the pause before each frame
	FrameDelay time.Duration
	// Hold keeps the socket open after the last frame until the client leaves
	Hold bool
	// RejectStatus fails the upgrade with this HTTP status when non-zero
	RejectStatus int
}

// Connection records one socket the mock accepted or rejected
type Connection struct {
	EntityID string
	Path     string
	Query    map[string]string
	// CloseCode and CloseReason are what the client sent when it closed
	CloseCode   int
	CloseReason string
}

// TriggerRequest records one call to the trigger endpoint
type TriggerRequest struct {
	EntityID       string
	Regenerate     bool
	Authorization  string
	IdempotencyKey string
	JobID          string
}

// Server is the mock backend
type Server struct {
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu              sync.Mutex
	script          Script
	scripts         map[string]Script
	token           string
	protocolVersion string
	triggerStatus   int
	connections     []*Connection
	triggers        []TriggerRequest
	jobs            map[string]string // idempotency key -> job id
	closed          chan *Connection
}

// Option configures a Server
type Option func(*Server)

// WithToken makes the mock reject sockets and triggers without this bearer token
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithProtocolVersion overrides the advertised protocol version
func WithProtocolVersion(v string) Option {
	return func(s *Server) { s.protocolVersion = v }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) { s.logger = log }
}

// New creates a mock backend running script for every entity
func New(script Script, opts ...Option) *Server {
	s := &Server{
		script:          script,
		scripts:         make(map[string]Script),
		protocolVersion: ProtocolVersion,
		jobs:            make(map[string]string),
		closed:          make(chan *Connection, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			// The tracker never sends an Origin header; browsers behind the proxy do
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.ComponentLogger("mockbackend")
	}
	return s
}

// SetScript replaces the default script
func (s *Server) SetScript(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

// SetScriptFor overrides the script for one entity
func (s *Server) SetScriptFor(entityID string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[entityID] = script
}

// FailTriggers makes the trigger endpoint answer with status (0 restores success)
func (s *Server) FailTriggers(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggerStatus = status
}

func (s *Server) scriptFor(entityID string) Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.scripts[entityID]; ok {
		return sc
	}
	return s.script
}

// Connections returns a snapshot of the sockets seen so far
func (s *Server) Connections() []Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Connection, len(s.connections))
	for i, c := range s.connections {
		out[i] = *c
	}
	return out
}

// Triggers returns a snapshot of the trigger calls seen so far
func (s *Server) Triggers() []TriggerRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TriggerRequest(nil), s.triggers...)
}

// Closed delivers each connection once the client has closed it
func (s *Server) Closed() <-chan *Connection {
	return s.closed
}

// Handler returns the HTTP routes of the mock
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/assessments/{id}/report", s.handleTrigger(false))
	mux.HandleFunc("POST /api/assessments/{id}/regenerate", s.handleTrigger(true))
	mux.HandleFunc("GET /ws/assessments/{id}/{kind}", s.handleSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// ListenAndServe serves the mock on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("Mock backend listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) newJobID(idempotencyKey string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idempotencyKey != "" {
		if id, ok := s.jobs[idempotencyKey]; ok {
			return id
		}
	}
	id := uuid.NewString()
	if idempotencyKey != "" {
		s.jobs[idempotencyKey] = id
	}
	return id
}
