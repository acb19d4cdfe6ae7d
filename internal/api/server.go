// Package api serves the desk over HTTP as JSON.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/engine"
)

// DefaultRequestTimeout bounds each request. Store calls carry their own
// shorter timeout.
const DefaultRequestTimeout = time.Minute

// Server is the desk HTTP API.
type Server struct {
	desk           *engine.Desk
	users          *auth.Directory
	tokens         *auth.Issuer
	logger         *slog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(desk *engine.Desk, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{desk: desk, logger: logger}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetUsers enables the /users sign-up and login endpoints.
func (s *Server) SetUsers(users *auth.Directory) { s.users = users }

// SetTokens turns on session tokens: login returns a Bearer token and every
// record, totals and audit route requires one. Agents only see and edit
// their own records. Status changes, deletes, the shift dashboards, the
// duplicates audit and new Manager accounts require a manager.
func (s *Server) SetTokens(tokens *auth.Issuer) { s.tokens = tokens }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newLoggerMiddleware(s.logger).handler)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(DefaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		manage := func(h http.HandlerFunc) http.Handler { return h }
		if s.tokens != nil {
			r.Use((&sessionMiddleware{tokens: s.tokens}).authenticate)
			manage = func(h http.HandlerFunc) http.Handler { return requireManager(h) }
		}

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Post("/", s.handleSubmit)
			r.Get("/recent", s.handleRecent)
			r.Get("/pending", s.handlePending)
			r.Get("/{id}", s.handleGetRecord)
			r.Put("/{id}", s.handleEdit)
			r.Method(http.MethodDelete, "/{id}", manage(s.handleDelete))
			r.Method(http.MethodPost, "/{id}/status", manage(s.handleStatus))
		})

		r.Route("/totals", func(r chi.Router) {
			r.Get("/night", s.handleNightTotal)
			r.Get("/today", s.handleTodayTotal)
			r.Method(http.MethodGet, "/hourly", manage(s.handleHourly))
			r.Method(http.MethodGet, "/agents", manage(s.handleTopAgents))
			r.Get("/status", s.handleStatusCounts)
		})

		r.Method(http.MethodGet, "/audit/duplicates", manage(s.handleDuplicates))
	})

	if s.users != nil {
		r.Route("/users", func(r chi.Router) {
			if s.tokens != nil {
				r.With((&sessionMiddleware{tokens: s.tokens}).identify).Post("/", s.handleSignUp)
			} else {
				r.Post("/", s.handleSignUp)
			}
			r.Post("/login", s.handleLogin)
		})
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
