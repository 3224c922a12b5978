package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpcbridge/rpcbridge/internal/bridge"
)

// ErrAlreadyRunning is returned when Start is called on a server whose HTTP
// listener is already running. This guard is independent of the bridge
// transport's handshake guard; the two must not be collapsed.
var ErrAlreadyRunning = errors.New("http: server already running")

// Server is the inbound adapter that carries JSON-RPC calls over plain
// synchronous HTTP POST. It owns the listener lifecycle; the bridge
// transport owns the pending batch registry for the same lifetime.
type Server struct {
	transport      *bridge.Transport
	server         *http.Server
	addr           string
	path           string
	maxBodyBytes   int64
	allowedOrigins []string
	logger         *slog.Logger
	metrics        *Metrics
	healthChecker  *HealthChecker

	mu      sync.Mutex
	running bool
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithPath sets the path the RPC endpoint is served on. Default is "/rpc".
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithMaxBodyBytes caps the request payload size. Default is 4 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding protection.
// If empty, all requests with an Origin header are blocked (local-only mode).
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithLogger sets the logger for the HTTP server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHealthChecker sets the health checker for the /healthz endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) {
		s.healthChecker = hc
	}
}

// NewServer creates an HTTP server wrapping the given bridge transport.
func NewServer(transport *bridge.Transport, opts ...Option) *Server {
	s := &Server{
		transport:      transport,
		addr:           "127.0.0.1:8080",
		path:           "/rpc",
		maxBodyBytes:   maxRequestBodySize,
		allowedOrigins: []string{},
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins accepting HTTP connections and bridging JSON-RPC calls.
// It blocks until the context is cancelled or an error occurs. Starting an
// already-running server fails with ErrAlreadyRunning.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	// Create Prometheus registry and metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = NewMetrics(reg, s.transport)

	// Build middleware chain (outermost first):
	// 1. MetricsMiddleware - record duration and status
	// 2. RequestID - extract/generate request ID and enrich logger
	// 3. RealIP - extract client IP from proxy headers
	// 4. DNSRebinding - security check for Origin header
	// 5. Handler - call lifecycle
	rpcHandler := callHandler(s.transport, s.maxBodyBytes)
	rpcHandler = DNSRebindingProtection(s.allowedOrigins)(rpcHandler)
	rpcHandler = RealIPMiddleware(rpcHandler)
	rpcHandler = RequestIDMiddleware(s.logger)(rpcHandler)
	rpcHandler = MetricsMiddleware(s.metrics)(rpcHandler)

	mux := http.NewServeMux()
	if s.healthChecker != nil {
		mux.Handle("/healthz", s.healthChecker.Handler())
	} else {
		mux.Handle("/healthz", healthHandler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))
	mux.Handle(s.path, rpcHandler)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	// Channel for server errors
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr, "path", s.path)
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.transport.ReportError(err)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server and flushes the
// pending batch registry so no waiter is left blocked.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Resolve pending waiters first so in-flight calls complete promptly.
	if err := s.transport.Close(); err != nil {
		s.logger.Error("error closing bridge transport", "error", err)
	}

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the server. It is idempotent: closing a
// server that never started, or closing twice, is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.running || s.server == nil {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()
	return s.shutdown()
}
