// =============================================================================
// GDEC Price Checker - HTTP Front-end
// =============================================================================
//
// Exposes reconciliation over HTTP for the desktop and browser front-ends.
// Every request is an isolated run: uploads are read into memory, reconciled
// and the workbook is streamed back. Nothing is written to disk.
//
// ROUTES:
//   GET  /healthz         liveness
//   POST /v1/promotions   multipart: platform, promotion (file)
//                         -> {"platform": ..., "promotions": [...]}
//   POST /v1/reconcile    multipart: platform, mode, promo, target (file),
//                         promotion (file)
//                         -> reconciled .xlsx as an attachment
//
// =============================================================================

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/config"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/logging"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
)

// Server is the HTTP front-end.
type Server struct {
	cfg      *config.MainConfig
	registry *policy.Registry
	logger   zerolog.Logger

	handler http.Handler
	server  *http.Server
}

// New creates a server resolving policies from registry.
func New(cfg *config.MainConfig, registry *policy.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", runIDHeader, statsHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/promotions", s.handlePromotions)
		r.Post("/reconcile", s.handleReconcile)
	})
	return r
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler,
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info().Str("addr", s.cfg.Server.Addr).Msg("server listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request and hands a request-scoped logger
// to the handlers through the context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		logger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), logger)))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}
