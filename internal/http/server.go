// Package http exposes the shopping service as a JSON API with a live
// server-sent events stream.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"corredo/internal/log"
	"corredo/internal/middleware/ratelimit"
	"corredo/internal/middleware/security"
	"corredo/internal/services"
)

// Options tunes the server. Zero values pick the defaults.
type Options struct {
	RequestsPerMinute int
	RequestTimeout    time.Duration
	KeepAlive         time.Duration // comment frames on the events stream
	TrustedProxies    []string      // CIDRs allowed to set X-Forwarded-For
}

func (o Options) withDefaults() Options {
	if o.RequestsPerMinute <= 0 {
		o.RequestsPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 25 * time.Second
	}
	return o
}

type Server struct {
	http.Server
	svc       *services.ShoppingService
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	keepAlive time.Duration

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.ShoppingService, logger *log.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = log.Discard()
	}
	opts = opts.withDefaults()
	resolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:       svc,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		keepAlive: opts.KeepAlive,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(resolver, opts.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: the events stream stays open. Other routes are
		// bounded by the Timeout middleware.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s, nil
}

func (s *Server) routes(resolver *security.ClientIPResolver, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(security.NewDetector(resolver, s.logger).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/healthz", s.handleHealth)
		r.Get("/readyz", s.handleReady)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(resolver.ClientIP, s.handleRateLimited))

		r.With(security.NoStore).Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Get("/view", s.handleView)
			r.Get("/budget", s.handleBudget)
			r.Get("/analytics", s.handleAnalytics)
			r.Get("/search", s.handleSearch)

			r.Route("/filter", func(r chi.Router) {
				r.Get("/", s.handleGetFilter)
				r.Post("/labels/{name}/toggle", s.handleToggleLabel)
				r.Delete("/labels", s.handleClearLabels)
				r.Put("/mode", s.handleSetFilterMode)
				r.Put("/show-purchased", s.handleSetShowPurchased)
			})

			r.Route("/items", func(r chi.Router) {
				r.Get("/", s.handleListItems)
				r.Post("/", s.handleCreateItem)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetItem)
					r.Put("/", s.handleUpdateItem)
					r.Delete("/", s.handleDeleteItem)
					r.Post("/purchase", s.handleMarkPurchased)
					r.Delete("/purchase", s.handleMarkUnpurchased)
				})
			})

			r.Route("/labels", func(r chi.Router) {
				r.Get("/", s.handleListLabels)
				r.Post("/", s.handleCreateLabel)
				r.Put("/{id}", s.handleUpdateLabel)
				r.Delete("/{id}", s.handleDeleteLabel)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

// Start listens until Shutdown is called. A graceful stop returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and the rate limiter cleanup. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(r.Context()).Warn("Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}
