package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rhuss/greetings/pkg/transport"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr        string
	MaxBodySize int64
	MaxDelay    time.Duration
	ReadTimeout time.Duration
	// WriteTimeout bounds the whole response, streams included. Zero
	// lets streams run as long as their delay requires.
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Wrap decorates the greeting handler, e.g. to add auth, metrics or
	// operational routes.
	Wrap func(http.Handler) http.Handler
}

// DefaultServerConfig listens on 127.0.0.1:3000.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "127.0.0.1:3000",
		MaxBodySize:     DefaultConfig().MaxBodySize,
		MaxDelay:        DefaultConfig().MaxDelay,
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// ServerOption adjusts a ServerConfig.
type ServerOption func(*ServerConfig)

func WithAddr(addr string) ServerOption {
	return func(c *ServerConfig) { c.Addr = addr }
}

func WithMaxBodySize(n int64) ServerOption {
	return func(c *ServerConfig) { c.MaxBodySize = n }
}

// WithMaxDelay caps the per-step delay a request may ask for. Zero
// disables the cap.
func WithMaxDelay(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.MaxDelay = d }
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *ServerConfig) { c.ReadTimeout, c.WriteTimeout = read, write }
}

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.ShutdownTimeout = d }
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}

func WithHandlerWrapper(wrap func(http.Handler) http.Handler) ServerOption {
	return func(c *ServerConfig) { c.Wrap = wrap }
}

// cancelGrace bounds the wait for streams cancelled at the shutdown
// deadline. It matches the responder's default history save timeout.
const cancelGrace = 5 * time.Second

// Server runs the greeting adapter on an http.Server and shuts it down
// gracefully.
type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	adapter    *Adapter
	httpServer *http.Server

	startOnce sync.Once
	started   chan struct{}
	addr      net.Addr
}

// NewServer builds a Server around streamer. store may be nil, which
// disables the history routes. Every stream runs under the Recovery,
// RequestID and Logging middlewares.
func NewServer(streamer transport.GreetingStreamer, store transport.HistoryStore, opts ...ServerOption) *Server {
	cfg := DefaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adapter := NewAdapter(streamer, store,
		Config{MaxBodySize: cfg.MaxBodySize, MaxDelay: cfg.MaxDelay},
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
	)

	handler := adapter.Handler()
	if cfg.Wrap != nil {
		handler = cfg.Wrap(handler)
	}

	return &Server{
		config:  cfg,
		logger:  logger,
		adapter: adapter,
		started: make(chan struct{}),
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// Adapter returns the greeting adapter the server runs.
func (s *Server) Adapter() *Adapter {
	return s.adapter
}

// Started is closed once the server accepts connections.
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Addr returns the bound address. Valid after Started is closed.
func (s *Server) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// ListenAndServe serves until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

// ServeOn serves on ln until SIGINT or SIGTERM.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.startOnce.Do(func() {
		s.addr = ln.Addr()
		close(s.started)
	})
	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))

	done := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		// Serve failed, or Shutdown was called directly.
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("draining streams",
		slog.Int("in_flight", s.adapter.InFlight()),
		slog.Duration("timeout", s.config.ShutdownTimeout))

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		s.logger.Info("server stopped")
		return nil
	}

	// Streams still running past the deadline are stopped, then given
	// cancelGrace to save their history records as cancelled.
	n := s.adapter.CancelStreams(transport.ErrServerStopping)
	s.logger.Warn("shutdown deadline reached, cancelling streams",
		slog.String("error", err.Error()),
		slog.Int("cancelled_streams", n))

	graceCtx, graceCancel := context.WithTimeout(context.Background(), cancelGrace)
	defer graceCancel()
	waitErr := s.adapter.WaitStreams(graceCtx)
	s.httpServer.Close()
	if waitErr != nil {
		s.logger.Error("cancelled streams did not finish",
			slog.Int("in_flight", s.adapter.InFlight()))
		return fmt.Errorf("shutdown: %w", errors.Join(err, waitErr))
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown stops the server, waiting for open streams until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
