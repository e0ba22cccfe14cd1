// Package server exposes the data set, views and user state to local clients
// over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/location"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/playadb"
	"github.com/iBurnApp/iBurn-iOS/internal/view"
)

// Dependencies holds all dependencies for the HTTP server
type Dependencies struct {
	DB         *playadb.DB
	Views      *view.Registry
	Location   *location.Manager
	Dispatcher *dispatcher.Dispatcher
	LogManager *logging.SlogManager
}

// Server is the local API.
type Server struct {
	deps       Dependencies
	router     chi.Router
	validate   *validator.Validate
	httpServer *http.Server
	log        *slog.Logger

	pingInterval time.Duration
}

// New builds the router. Location and Views may be nil; their routes then
// answer 503.
func New(deps Dependencies) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: playadb is required")
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	s := &Server{
		deps:         deps,
		validate:     validator.New(),
		log:          deps.LogManager.Component("server"),
		pingInterval: defaultPingInterval,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthcheck", s.handleHealthcheck)

	r.Get("/art", s.handleArt)
	r.Get("/camps", s.handleCamps)
	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.handleEvents)
		r.Get("/now", s.handleEventsNow)
		r.Get("/upcoming", s.handleEventsUpcoming)
	})
	r.Get("/objects/{type}/{uid}", s.handleObject)
	r.Get("/search", s.handleSearch)

	r.Get("/favorites", s.handleFavorites)
	r.Put("/favorites/{type}/{uid}", s.handleToggleFavorite)
	r.Put("/notes/{type}/{uid}", s.handleNotes)

	r.Get("/nearby", s.handleNearby)
	r.Post("/location", s.handleLocation)

	r.Get("/views/{name}", s.handleView)
	r.Put("/views/{name}/filter", s.handleViewFilter)
	r.Get("/ws/views/{name}", s.handleViewFeed)

	r.Post("/lowmemory", s.handleLowMemory)

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "address", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/healthcheck") || strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
