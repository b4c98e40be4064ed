// Package server exposes the bot's HTTP surface: liveness, health, the user
// dashboard endpoints, Prometheus metrics and the Telegram webhook.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
)

const (
	healthTimeout   = 3 * time.Second
	queryTimeout    = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Server is the HTTP server of the bot.
type Server struct {
	router  *chi.Mux
	cfg     config.HTTPConfig
	store   database.Store
	webhook http.Handler
	logger  *slog.Logger
}

// New builds the router. A nil webhook leaves /webhook unmounted.
func New(cfg config.HTTPConfig, store database.Store, webhook http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		store:   store,
		webhook: webhook,
		logger:  logger.With("component", "http_server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	if s.webhook != nil {
		s.router.Post("/webhook", s.webhook.ServeHTTP)
	}

	if s.cfg.AdminToken != "" {
		s.router.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/users", s.handleUsers)
			r.Get("/count", s.handleCount)
		})
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "port", s.cfg.Port, "webhook", s.webhook != nil, "dashboard", s.cfg.AdminToken != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"req_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// requireToken checks the bearer token against http.admin_token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	want := []byte(s.cfg.AdminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("running"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

type userResponse struct {
	ID         int64     `json:"id"`
	FirstName  string    `json:"first_name"`
	Username   string    `json:"username,omitempty"`
	Active     bool      `json:"active"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list users"})
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			ID:         u.ID,
			FirstName:  u.FirstName,
			Username:   u.Username,
			Active:     u.IsActive,
			JoinedAt:   u.JoinedAt,
			LastSeenAt: u.LastSeenAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	total, active, err := s.store.CountUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count users", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count users"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": total, "active": active})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
