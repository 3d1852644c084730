// Package httpserver bootstraps an HTTP server with the middleware stack
// shared by our services: request IDs, structured request logging,
// permissive CORS headers, and optional Prometheus metrics. JSON request
// bodies decoded through DecodeJSON are capped at MaxJSONBody; other
// bodies are unrestricted. Callers supply their API routes through a
// callback; the server
// additionally serves the embedded frontend bundle in production, or
// proxies to the frontend dev server in development builds.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/creamcroissant/servekit/internal/buildmode"
	"github.com/go-chi/chi/v5"
)

// DefaultWorkers caps how many requests are processed concurrently when
// Options.Workers is left zero.
const DefaultWorkers = 4

// Options configures a Server.
type Options struct {
	// Port is the TCP port to listen on; the server binds all interfaces.
	Port uint16
	// Workers caps concurrent request processing (default 4).
	Workers int
	// Logger receives request and lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Routes registers the caller's API endpoints on the router.
	Routes func(r chi.Router)
	// Assets is the embedded frontend bundle served in production builds.
	// It must contain index.html at its root and an assets/ subdirectory.
	Assets fs.FS
	// DevServerURL is the frontend dev server proxied to in development
	// builds (default http://localhost:5173).
	DevServerURL string
	// Metrics enables the Prometheus middleware and the /metrics endpoint.
	Metrics bool
	// MetricsNamespace overrides the metric name prefix (default "servekit").
	MetricsNamespace string
	// ShutdownTimeout bounds graceful shutdown (default 15s).
	ShutdownTimeout time.Duration
}

// Server wraps http.Server with the servekit middleware stack.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	shutdown   time.Duration
}

// New assembles the router and middleware and returns a Server ready to Run.
func New(opts Options) (*Server, error) {
	if opts.Port == 0 {
		return nil, fmt.Errorf("httpserver: port is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	shutdown := opts.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 15 * time.Second
	}

	r, err := newRouter(opts, logger, workers)
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", opts.Port),
			Handler:           r,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MiB
		},
		logger:   logger,
		shutdown: shutdown,
	}, nil
}

// newRouter builds the chi router shared by New and the tests.
func newRouter(opts Options, logger *slog.Logger, workers int) (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(requestLogger(logger))
	r.Use(permissiveCORS())
	r.Use(concurrencyLimit(workers))

	if opts.Metrics {
		m := newMetrics(opts.MetricsNamespace)
		r.Use(m.middleware())
		r.Handle("/metrics", m.handler())
	}

	if opts.Routes != nil {
		opts.Routes(r)
	}

	if buildmode.IsDevelopment() {
		target := opts.DevServerURL
		if target == "" {
			target = defaultDevServerURL
		}
		parsed, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("httpserver: parse dev server url: %w", err)
		}
		proxy := newDevProxy(parsed, logger)
		r.Handle("/*", proxy)
		r.NotFound(proxy.ServeHTTP)
	} else if opts.Assets != nil {
		assets := newAssetHandler(opts.Assets, logger)
		assets.register(r)
	}

	return r, nil
}

// Handler exposes the assembled router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run starts the listener and blocks until ctx is cancelled or the server
// fails. Shutdown is graceful within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return <-errCh
}
