// Package server exposes the dashboard HTTP API: proxy routes for the
// extraction, classification, OCR and analysis providers, and in-memory
// extraction sessions that report AsyncController state to the UI.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"docdash/internal/analyze"
	"docdash/internal/classify"
	"docdash/internal/extraction"
	"docdash/internal/logger"
	"docdash/internal/ocr"
	"docdash/internal/pulse"
)

// Provider is the extraction API used by the pulse routes and sessions.
type Provider interface {
	extraction.Endpoint
	Job(ctx context.Context, jobID string) (*pulse.JobStatus, error)
}

// Classifier identifies document types by URL.
type Classifier interface {
	Classify(ctx context.Context, fileURL string) (*classify.Result, error)
}

type Config struct {
	Addr        string
	CORSOrigins []string

	// SessionTTL evicts extraction sessions not read for this long.
	SessionTTL time.Duration

	// Async holds the polling behavior and submit options of new sessions
	// and of the async proxy route.
	Async extraction.AsyncConfig

	// MaxUploadBytes bounds multipart uploads.
	MaxUploadBytes int64
}

// Services are the upstream clients. Nil services answer 503.
type Services struct {
	Provider   Provider
	Classifier Classifier
	OCR        ocr.Engine
	Analyzer   analyze.Analyzer
}

type Server struct {
	config   Config
	services Services
	sessions *sessionStore
	log      zerolog.Logger
	router   chi.Router
}

func New(config Config, services Services) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 32 << 20
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}

	s := &Server{
		config:   config,
		services: services,
		log:      logger.WithComponent("server"),
	}

	s.sessions = newSessionStore(config.SessionTTL, func() *extraction.AsyncController {
		return extraction.NewAsyncController(services.Provider, services.Provider, config.Async)
	})

	s.router = s.routes()

	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/pulse", func(r chi.Router) {
			r.Post("/extract", s.handleExtract)
			r.Post("/extract_async", s.handleExtractAsync)
			r.Get("/poll", s.handlePoll)
		})

		r.Post("/nyckel/document-types-identifier", s.handleClassify)

		r.Post("/ocr", s.handleOCR)
		r.Post("/analyze", s.handleAnalyze)

		r.Route("/extractions", func(r chi.Router) {
			r.Post("/", s.handleCreateExtraction)
			r.Get("/{id}", s.handleGetExtraction)
			r.Post("/{id}/reset", s.handleResetExtraction)
			r.Delete("/{id}", s.handleDeleteExtraction)
		})
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// closes every open session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.sessions.run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.config.Addr).Msg("Dashboard API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.closeAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.sessions.closeAll()

	s.log.Info().Msg("Dashboard API stopped")
	return err
}
