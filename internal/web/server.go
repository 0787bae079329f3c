// Package web provides the HTTP API and upload-history page for list ingestion.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/listingest/internal/config"
	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
	"github.com/JonMunkholm/listingest/internal/web/middleware"
)

// WorkerAdder is implemented by stores that can register workers.
type WorkerAdder interface {
	AddWorker(ctx context.Context, name string) (core.Worker, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for list ingestion.
type Server struct {
	engine   *core.Engine
	store    core.Store
	limiter  *core.UploadLimiter
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	started  time.Time
	limiters []*rateLimiter
}

// NewServer wires routes and middleware. Call Shutdown (or Close when the
// server was never started) to stop background goroutines.
func NewServer(engine *core.Engine, store core.Store, limiter *core.UploadLimiter, cfg *config.Config) *Server {
	s := &Server{
		engine:  engine,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		router:  chi.NewRouter(),
		started: time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := s.newLimiter(s.cfg.Rate.RequestsPerMinute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	auth := middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.APIKeyOwners())

	// Upload routes carry their own deadline (UPLOAD_TIMEOUT); everything
	// else gets the general request timeout.
	uploads := func(r chi.Router) {
		if s.cfg.Rate.Enabled {
			r.Use(s.newLimiter(s.cfg.Rate.UploadLimit).middleware)
		}
		r.Post("/lists/upload", s.handleListUpload)
		r.Post("/upload", s.handleContactUpload)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.With(chimw.Timeout(s.cfg.Server.RequestTimeout)).Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Group(uploads)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

				r.Get("/lists", s.handleGetLists)
				r.Get("/lists/agent/{agentID}", s.handleGetListsByAgent)

				r.Get("/agents", s.handleListAgents)
				r.Post("/agents", s.handleCreateAgent)

				r.Get("/upload", s.handleListAttempts)
				r.Get("/upload/{uploadID}", s.handleGetAttempt)
			})
		})
	})

	s.router.With(auth, chimw.Timeout(s.cfg.Server.RequestTimeout)).Get("/uploads", s.handleUploadHistoryPage)
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start begins listening for HTTP requests on the configured address.
// It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	logging.FromContext(context.Background()).Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()
	return s.server.Shutdown(ctx)
}

// Close stops background goroutines without touching the listener.
func (s *Server) Close() {
	for _, rl := range s.limiters {
		rl.close()
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// The history page uses inline styles only.
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
		}

		next.ServeHTTP(w, r)
	})
}
