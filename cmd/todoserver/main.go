package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olgkv/todolist/internal/app"
	"github.com/olgkv/todolist/internal/config"
)

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// runHTTPServer serves until ctx is cancelled or the listener fails, then
// shuts the server down gracefully.
func runHTTPServer(ctx context.Context, srv httpServer, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, svc, st, err := app.NewServer(ctx, cfg)
	if err != nil {
		slog.Error("init server", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	slog.Info("server listening", "addr", srv.Addr, "backend", cfg.StoreBackend)
	if err := runHTTPServer(ctx, srv, cfg.ShutdownTimeout); err != nil {
		slog.Error("server error", "error", err)
	}

	summaryCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()
	if total, done, err := svc.Stats(summaryCtx); err == nil {
		slog.Info("shutdown summary", "total_tasks", total, "done_tasks", done)
	}
	if err := st.Close(summaryCtx); err != nil {
		slog.Error("close store", "error", err)
	}
}
