package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 10 * time.Second

// Start serves HTTP on the configured address. The returned channel is
// closed once SIGINT or SIGTERM arrives.
func (a *App) Start() <-chan struct{} {
	done := make(chan struct{})

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		<-ctx.Done()
		slog.Info("shutdown signal received")
		close(done)
	}()

	return done
}

// Serve runs the HTTP server on l. Tests use it with an ephemeral port.
func (a *App) Serve(l net.Listener) <-chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		errs <- a.httpServer.Serve(l)
	}()
	return errs
}

// ShutdownTimeout bounds Stop, from app.server.shutdown_timeout_seconds.
func (a *App) ShutdownTimeout() time.Duration {
	if d := a.config.GetSecond("app.server.shutdown_timeout_seconds"); d > 0 {
		return d
	}
	return defaultShutdownTimeout
}

// Stop drains in-flight requests, waits for queued event publishes and then
// releases resources in reverse dependency order.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to drain http server", "error", err)
	}

	slog.InfoContext(ctx, "waiting for pending events to publish")
	if err := a.waitBackground(ctx); err != nil {
		slog.ErrorContext(ctx, "background work ended with error", "error", err)
	}

	// cancelled after the drain so publishes still running can finish
	a.cancel()

	for _, c := range slices.Backward(a.closers) {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}
	slog.InfoContext(ctx, "application stopped")
}

func (a *App) waitBackground(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.goroutine.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
