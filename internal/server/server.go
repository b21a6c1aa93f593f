package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcogenualdo/reqlog/internal/capture"
	"github.com/marcogenualdo/reqlog/internal/config"
	"github.com/marcogenualdo/reqlog/internal/console"
)

var ErrNotListening = errors.New("server is not listening")

var notifyContext = signal.NotifyContext

type Server struct {
	cfg        config.Config
	console    *console.Printer
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
}

func New(cfg config.Config, printer *console.Printer, logger *slog.Logger) (*Server, error) {
	return &Server{
		cfg:     cfg,
		console: printer,
		logger:  logger,
	}, nil
}

// Start binds, serves until SIGINT or SIGTERM, then shuts down. Signal
// handling is released before shutdown begins, so a second interrupt
// terminates the process.
func (s *Server) Start() error {
	sigCtx, stop := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCtx.Done():
			stop()
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.Serve(ctx)
}

// Listen binds the listening socket. A bind failure is returned before
// anything is served.
func (s *Server) Listen() error {
	var options []listenerOption
	if s.cfg.TLS.Enabled() {
		options = append(options, withTLS(s.cfg.TLS))
	}

	ln, err := newListener(s.cfg.Server.Addr(), options...)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr(), err)
	}

	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the serve loop on the bound listener until ctx is done. The
// listener is closed on every return path.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return ErrNotListening
	}

	s.httpServer = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		ConnContext:       capture.ConnContext,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	addr := s.listener.Addr().String()
	if err := s.console.Starting(addr); err != nil {
		s.logger.Warn("failed to print startup message", "error", err)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", addr,
			"tls", s.cfg.TLS.Enabled(),
		)
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("serve loop failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("received shutdown signal")
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")

	err := s.httpServer.Shutdown(ctx)
	if printErr := s.console.Stopping(); printErr != nil {
		s.logger.Warn("failed to print shutdown message", "error", printErr)
	}
	if err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}
