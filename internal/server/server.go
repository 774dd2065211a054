package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kotae/internal/pathguard"
	"github.com/ashita-ai/kotae/internal/ratelimit"
	"github.com/ashita-ai/kotae/internal/storage"
)

// Server is the Kotae HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional fields (nil-safe): Store, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Temporal TemporalClient
	Guard    *pathguard.Guard
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Store       *storage.Store
	MCPServer   *mcpserver.MCPServer
	Limiter     ratelimit.Limiter
	OpenAPISpec []byte

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	TaskQueue           string
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Temporal:            cfg.Temporal,
		Store:               cfg.Store,
		Guard:               cfg.Guard,
		Logger:              cfg.Logger,
		TaskQueue:           cfg.TaskQueue,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Chat lifecycle. Only creation is rate limited: every POST starts a
	// workflow and an LLM generation, while the read paths are cheap queries.
	limited := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, requestIDFromRequest)
	mux.Handle("POST /v1/chats", limited(http.HandlerFunc(h.HandleCreateChat)))
	mux.HandleFunc("GET /v1/chats", h.HandleListChats)
	mux.HandleFunc("GET /v1/chats/{chat_id}", h.HandleGetChat)
	mux.HandleFunc("GET /v1/chats/{chat_id}/result", h.HandleChatResult)
	mux.HandleFunc("DELETE /v1/chats/{chat_id}", h.HandleCancelChat)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health (no middleware concerns beyond the shared chain).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Machine-readable API description.
	if len(cfg.OpenAPISpec) > 0 {
		mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(cfg.OpenAPISpec)
		})
	}

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
