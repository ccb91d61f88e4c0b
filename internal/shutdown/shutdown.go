// Package shutdown runs the API server until SIGTERM/SIGINT, then drains
// in-flight requests and releases backing resources.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// Hook releases a resource after the server stopped (database pool, Redis
// client, Sentry buffer). Hooks run in order; failures are logged.
type Hook struct {
	Name  string
	Close func(ctx context.Context) error
}

// GracefulServe listens on srv.Addr and blocks until SIGTERM or SIGINT.
func GracefulServe(srv *http.Server, drainTimeout time.Duration, logger *slog.Logger, hooks ...Hook) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, srv, ln, drainTimeout, logger, hooks...)
}

// Serve serves on ln until ctx is done, then stops accepting connections,
// waits up to drainTimeout for active requests and runs hooks.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, drainTimeout time.Duration, logger *slog.Logger, hooks ...Hook) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	logger.Info("draining connections", "timeout", drainTimeout.String())
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(drainCtx)
	if shutdownErr != nil {
		logger.Error("graceful shutdown failed", "error", shutdownErr)
	}

	for _, h := range hooks {
		if err := h.Close(drainCtx); err != nil {
			logger.Error("shutdown hook failed", "hook", h.Name, "error", err)
		}
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	logger.Info("server stopped cleanly")
	return nil
}
