package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Detection
			r.Post("/detect", s.handleDetect)

			// Feedback (confirm / reject / correct)
			r.Post("/feedback", s.handleFeedback)

			// Learned pattern management
			r.Route("/learned", func(r chi.Router) {
				r.Get("/", s.handleListLearned)
				r.Get("/export", s.handleExportBackup)
				r.Delete("/{index}", s.handleDeleteLearned)
			})

			// Community sharing
			r.Post("/share", s.handleShare)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
