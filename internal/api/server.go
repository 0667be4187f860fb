package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/audit"
	"github.com/nerrad567/chuango-bridge/internal/bridge"
	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/fusion"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/chuango-bridge/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Backend is what the server exposes. *bridge.Bridge implements it.
type Backend interface {
	Snapshot() *fusion.Snapshot
	Subscribe(fn func(*fusion.Snapshot)) (unsubscribe func())
	Dispatch(ctx context.Context, id string, cmd device.Command) error
	Refresh(ctx context.Context) error
	Status() bridge.Status
	Diagnostics() []session.Diagnostics
	DeviceDiagnostics(id string) (session.Diagnostics, bool)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Backend  Backend
	Audit    audit.Repository // optional
	Version  string
}

// Server is the HTTP API server of the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	backend     Backend
	auditRepo   audit.Repository
	version     string
	server      *http.Server
	hub         *Hub
	unsubscribe func()
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		backend:   deps.Backend,
		auditRepo: deps.Audit,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes the hub to backend snapshots,
// and launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.watchBackend(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// watchBackend relays backend changes to the hub until ctx ends.
func (s *Server) watchBackend(ctx context.Context) {
	changed := make(chan struct{}, 1)
	s.unsubscribe = s.backend.Subscribe(func(*fusion.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	go s.relaySnapshots(ctx, changed)
}

// relaySnapshots broadcasts the latest snapshot and status after each
// change. Changes arriving while a broadcast is in progress coalesce
// into one.
func (s *Server) relaySnapshots(ctx context.Context, changed <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			s.hub.Broadcast(ChannelSnapshot, s.backend.Snapshot())
			s.hub.Broadcast(ChannelStatus, s.backend.Status())
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
