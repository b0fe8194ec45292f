package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
	"github.com/seantiz/pdf2zh-engine/internal/engine"
	"github.com/seantiz/pdf2zh-engine/internal/jobs"
	"github.com/seantiz/pdf2zh-engine/internal/store"
	"github.com/seantiz/pdf2zh-engine/internal/watchdog"
)

const (
	shutdownTimeout   = 10 * time.Second
	abortTimeout      = time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second

	// defaultKeepalive is how long an SSE stream may stay silent before a
	// comment line is written to probe the client.
	defaultKeepalive = time.Second

	loopbackHost = "127.0.0.1"
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router      *chi.Mux
	store       store.Store
	translators *backend.Registry
	engine      *engine.Engine
	jobs        *jobs.Registry
	logger      *slog.Logger
	keepalive   time.Duration
	corsOrigins []string
	pid         int
}

// Option configures a Server.
type Option func(*Server)

// WithKeepalive overrides the SSE keepalive interval.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

// WithCORSOrigins allows browser calls from the listed origins. Without it no
// CORS headers are sent and cross-origin requests are refused by the browser.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = append(s.corsOrigins, origins...)
	}
}

// NewServer creates and configures a new HTTP server.
func NewServer(s store.Store, translators *backend.Registry, eng *engine.Engine, logger *slog.Logger, opts ...Option) *Server {
	srv := &Server{
		router:      chi.NewRouter(),
		store:       s,
		translators: translators,
		engine:      eng,
		jobs:        eng.Jobs(),
		logger:      logger,
		keepalive:   defaultKeepalive,
		pid:         os.Getpid(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	// An empty AllowedOrigins means "*" to the cors package.
	if len(srv.corsOrigins) > 0 {
		srv.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   srv.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Post("/translate", s.handleTranslate)
	s.router.Get("/events", s.handleEvents)
	s.router.Get("/result", s.handleResult)

	s.router.Get("/services", s.handleListServices)
	s.router.Get("/stats", s.handleGetStats)

	s.router.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/events", s.handleGetJobEvents)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// readyMessage is the single stdout line announcing the bound port.
type readyMessage struct {
	Type string `json:"type"`
	Port int    `json:"port"`
}

// Run binds 127.0.0.1:port (0 picks a free port), writes the ready line to
// ready and serves until ctx is canceled. Shutdown drains HTTP connections
// and then waits for running jobs, both bounded by the shutdown timeout.
// When ctx was canceled because the parent process is gone, running jobs are
// aborted first and the wait is bounded by abortTimeout instead.
func (s *Server) Run(ctx context.Context, port int, ready io.Writer) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(loopbackHost, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	bound := ln.Addr().(*net.TCPAddr).Port

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	line, err := json.Marshal(readyMessage{Type: "ready", Port: bound})
	if err != nil {
		return fmt.Errorf("encode ready message: %w", err)
	}
	if _, err := fmt.Fprintf(ready, "%s\n", line); err != nil {
		httpServer.Close()
		return fmt.Errorf("write ready message: %w", err)
	}
	s.logger.Info("server listening", "addr", ln.Addr().String(), "pid", s.pid)

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "cause", context.Cause(ctx).Error())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	timeout := shutdownTimeout
	if errors.Is(context.Cause(ctx), watchdog.ErrParentGone) {
		// Nobody is left to collect results.
		s.engine.Abort()
		timeout = abortTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := s.engine.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("jobs still running at shutdown", "error", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure writes the {"ok":false,"error":...} shape used by the job
// endpoints.
func (s *Server) writeFailure(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, failureResponse{OK: false, Error: message})
}

type failureResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
