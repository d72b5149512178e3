package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/taskwell/taskwell/internal/config"
	"github.com/taskwell/taskwell/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Threads       ThreadStore   // Required
	Todos         TodoStore     // Required
	Streamer      EventStreamer // Required
	CORSOrigins   []string      // Allowed origins for CORS
	RetentionDays int           // Thread retention for the cleanup endpoint (0 = default)
	ListLimit     int32         // Max threads returned by the list endpoint (0 = default)
	RateBurst     int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Threads == nil {
		return nil, errors.New("thread store is required")
	}
	if cfg.Todos == nil {
		return nil, errors.New("todo store is required")
	}
	if cfg.Streamer == nil {
		return nil, errors.New("event streamer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}
	listLimit := cfg.ListLimit
	if listLimit <= 0 {
		listLimit = config.DefaultThreadListLimit
	}

	ch := &chatHandler{
		logger:   logger,
		threads:  cfg.Threads,
		streamer: cfg.Streamer,
	}
	th := &threadsHandler{
		logger:        logger,
		threads:       cfg.Threads,
		listLimit:     listLimit,
		retentionDays: retentionDays,
	}
	td := &todosHandler{
		logger: logger,
		todos:  cfg.Todos,
	}
	hh := &healthHandler{
		logger:    logger,
		streamer:  cfg.Streamer,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/chat", ch.chat)

	// Threads
	mux.HandleFunc("GET /api/threads", th.list)
	mux.HandleFunc("POST /api/cleanup", th.cleanup)
	mux.HandleFunc("GET /api/threads/{id}/messages", th.messages)
	mux.HandleFunc("PUT /api/threads/{id}/title", th.updateTitle)
	mux.HandleFunc("DELETE /api/threads/{id}", th.delete)

	// Todos
	mux.HandleFunc("GET /api/todos", td.list)
	mux.HandleFunc("POST /api/todos", td.create)
	mux.HandleFunc("GET /api/todos/{id}", td.get)
	mux.HandleFunc("PUT /api/todos/{id}", td.update)
	mux.HandleFunc("DELETE /api/todos/{id}", td.delete)

	// Health inside the API prefix for clients that cannot reach /health
	mux.HandleFunc("GET /api/health", hh.health)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
