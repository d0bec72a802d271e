// Package worker holds the daemon's process-level plumbing: layered
// configuration and the health and metrics HTTP servers.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// serve runs srv on ln until ctx is canceled, then shuts it down gracefully.
// It returns nil after a clean shutdown.
func serve(ctx context.Context, logger *slog.Logger, name string, srv *http.Server, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info(name+" server starting", slog.String("addr", ln.Addr().String()))
		errChan <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info(name + " server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(name+" server shutdown failed", slog.Any("error", err))
			return err
		}
		logger.Info(name + " server stopped")
		return nil

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error(name+" server failed", slog.Any("error", err))
		return err
	}
}

// listenAndServe binds addr and hands off to serve.
func listenAndServe(ctx context.Context, logger *slog.Logger, name, addr string, handler http.Handler, writeTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, logger, name, srv, ln)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
