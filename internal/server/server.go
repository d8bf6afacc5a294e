package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/logging"
)

const (
	defaultStartTimeout    = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Listen         string
	AllowedOrigins []string // CORS and WebSocket origins; empty allows same-origin only

	// StartTimeout bounds how long POST /api/capture/start waits for the
	// diagnostic device.
	StartTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP status surface of a capture manager
type Server struct {
	config   Config
	manager  *capture.Manager
	router   *mux.Router
	handler  http.Handler
	http     *http.Server
	listener net.Listener

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]func() // live warning streams, keyed by remote address
}

// New creates a new Server instance
func New(config Config, manager *capture.Manager) *Server {
	if config.StartTimeout <= 0 {
		config.StartTimeout = defaultStartTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		config:      config,
		manager:     manager,
		router:      mux.NewRouter(),
		activeConns: make(map[string]func()),
	}
	s.setupRoutes()

	s.handler = s.router
	if len(config.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		})
		s.handler = c.Handler(s.router)
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	api.HandleFunc("/report", s.liveReportHandler).Methods(http.MethodGet)
	api.HandleFunc("/captures", s.capturesHandler).Methods(http.MethodGet)
	api.HandleFunc("/captures/{name}/report", s.captureReportHandler).Methods(http.MethodGet)
	api.HandleFunc("/captures/{name}/pcap", s.capturePcapHandler).Methods(http.MethodGet)
	api.HandleFunc("/capture/start", s.startHandler).Methods(http.MethodPost)
	api.HandleFunc("/capture/stop", s.stopHandler).Methods(http.MethodPost)
	api.HandleFunc("/warnings/stream", s.streamHandler).Methods(http.MethodGet)
}

// Handler returns the routed handler, wrapped for CORS when origins are
// configured.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	logging.Info("Server listening for connections", zap.String("addr", listener.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		sctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(sctx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server. Warning streams are closed,
// and a running live session is stopped so its capture is finalized.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	srv := s.http
	for addr, closeConn := range s.activeConns {
		logging.Info("Closing warning stream", zap.String("remote_addr", addr))
		closeConn()
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	if _, stopErr := s.manager.StopLive(ctx); stopErr != nil && !errors.Is(stopErr, capture.ErrNoSession) {
		logging.Warn("Failed to stop live capture", zap.Error(stopErr))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of open warning streams
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(addr string, closeConn func()) {
	s.mu.Lock()
	s.activeConns[addr] = closeConn
	s.mu.Unlock()
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	delete(s.activeConns, addr)
	s.mu.Unlock()
}
