package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/event"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Publisher sends change events to the message bus. It is implemented by
// mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.ServerConfig
	Client    *authority.Client
	Publisher Publisher   // optional: no change events without it
	Codec     event.Codec // defaults to JSON
	QoS       byte
	Logger    *logging.Logger
	Version   string
}

// Server is the authority's HTTP API server.
//
// It is created with New() and started with Start(). Handler() exposes the
// router for tests and for embedding in another listener.
type Server struct {
	cfg      config.ServerConfig
	client   *authority.Client
	notifier *notifier
	logger   *logging.Logger
	version  string
	handler  http.Handler
	server   *http.Server
	addr     net.Addr
}

// New creates a new API server with the given dependencies.
//
// Parameters:
//   - deps: Required dependencies (client, logger); the publisher is optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("authority client is required")
	}
	codec := deps.Codec
	if codec == nil {
		codec = event.JSONCodec{}
	}

	s := &Server{
		cfg:     deps.Config,
		client:  deps.Client,
		logger:  deps.Logger,
		version: deps.Version,
		notifier: &notifier{
			client:    deps.Client,
			publisher: deps.Publisher,
			codec:     codec,
			qos:       deps.QoS,
			logger:    deps.Logger,
		},
	}
	if deps.Config.TokenSecret == "" {
		deps.Logger.Warn("authority API running without bearer authentication")
	}
	if deps.Publisher == nil {
		deps.Logger.Warn("authority API running without a publisher: drivers will not see changes")
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so an address already in use
// is reported here; requests are then served in a background goroutine.
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("binding authority API listener: %w", err)
	}
	s.addr = ln.Addr()

	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	go func() {
		s.logger.Info("authority API listening", "address", s.addr.String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("authority API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("authority API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down authority API: %w", err)
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
