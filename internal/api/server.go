// Package api provides the HTTP REST interface to the sheet engine: sheet
// CRUD, instruction management, column applies, and an SSE stream of cell
// events for the presentation layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/gridmind/gridmind/internal/engine"
	"github.com/gridmind/gridmind/internal/events"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/template"
)

// Server exposes the engine over HTTP.
type Server struct {
	router   chi.Router
	service  *engine.Service
	registry *template.Registry
	bus      *events.Bus
	logger   *logging.Logger
}

// NewServer creates an API server around an engine service.
func NewServer(service *engine.Service, registry *template.Registry, bus *events.Bus, logger *logging.Logger) *Server {
	s := &Server{
		service:  service,
		registry: registry,
		bus:      bus,
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Api-Key", "X-Serper-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sheets", func(r chi.Router) {
			r.Get("/", s.handleListSheets)
			r.Post("/", s.handleCreateSheet)

			r.Route("/{sheetID}", func(r chi.Router) {
				r.Get("/", s.handleGetSheet)
				r.Put("/", s.handleSaveSheet)
				r.Delete("/", s.handleDeleteSheet)
				r.Get("/export", s.handleExportSheet)

				r.Route("/cells/{row}/{col}", func(r chi.Router) {
					r.Post("/", s.handleEditCell)
					r.Delete("/", s.handleClearCell)
					r.Post("/regenerate", s.handleRegenerateCell)
				})

				r.Route("/columns/{col}", func(r chi.Router) {
					r.Post("/instruction", s.handleSetInstruction)
					r.Delete("/instruction", s.handleClearInstruction)
					r.Post("/apply", s.handleApplyColumn)
					r.Delete("/jobs", s.handleCancelColumn)
				})
			})
		})

		r.Get("/templates", s.handleListTemplates)
		r.Get("/events", s.handleSSE)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten())
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps an engine error onto an HTTP status.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	s.respondError(w, httpStatusForDomainError(err), err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("api server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
