// Package api provides the streakd HTTP server.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streakforge/streakd/internal/app/streak"
	"github.com/streakforge/streakd/internal/config"
	"github.com/streakforge/streakd/internal/health"
)

// Server is the streakd HTTP API server.
type Server struct {
	svc            *streak.Service
	cfg            *config.Provider
	health         *health.Checker
	validate       *validator.Validate
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(svc *streak.Service, cfg *config.Provider, h *health.Checker) *Server {
	return &Server{
		svc:      svc,
		cfg:      cfg,
		health:   h,
		validate: validator.New(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Route("/streaks", func(r chi.Router) {
		r.Post("/update", s.handleUpdate)
		r.Get("/{userID}", s.handleSnapshot)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.health.Statuses()
	code := http.StatusOK
	status := "ok"
	if !s.health.IsHealthy() {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": statuses,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service_name":        "streakd",
		"service_api_version": s.cfg.String("service_version", "0.0.0"),
		"model_versions":      s.cfg.Get("model_versions", map[string]any{}),
	})
}

// handleIndex serves a small HTML landing page pointing at the endpoints.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	version := s.cfg.String("service_version", "0.0.0")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><head><title>streakd</title></head>
<body>
<h1>streakd: streak scoring service</h1>
<p>Tracks and validates user engagement streaks.</p>
<ul>
<li><a href="/health">Health</a></li>
<li><a href="/version">Version</a></li>
<li>POST /streaks/update</li>
</ul>
<p>Service version: %s</p>
</body></html>`, version)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
