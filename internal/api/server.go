package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hydrocloud/hydro-core/internal/infrastructure/config"
	"github.com/hydrocloud/hydro-core/internal/infrastructure/logging"
	"github.com/hydrocloud/hydro-core/internal/link"
	"github.com/hydrocloud/hydro-core/internal/metrics"
	"github.com/hydrocloud/hydro-core/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LinkStatus reports the sensor link's connection state. *link.Link
// implements it.
type LinkStatus interface {
	State() link.State
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Store   store.Store
	Link    LinkStatus // optional; health reports "unknown" without it
	Version string

	// Gatherer backs GET /metrics. When nil the endpoint is not mounted.
	Gatherer prometheus.Gatherer

	// Metrics records per-request counters. May be nil.
	Metrics *metrics.Collector

	// Hub backs GET /api/v1/stream. When nil the endpoint is not mounted.
	Hub *Hub

	// Now defaults to time.Now; used to resolve relative since values.
	Now func() time.Time
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	store    store.Store
	link     LinkStatus
	gatherer prometheus.Gatherer
	metrics  *metrics.Collector
	hub      *Hub
	version  string
	now      func() time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Store are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	s := &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		store:    deps.Store,
		link:     deps.Link,
		gatherer: deps.Gatherer,
		metrics:  deps.Metrics,
		hub:      deps.Hub,
		version:  deps.Version,
		now:      deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Start binds the listener and serves requests in a background goroutine.
// Binding happens before Start returns, so a port in use is reported here.
//
// Parameters:
//   - ctx: Unused beyond cancellation of the bind; Close stops the server
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API server to %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
