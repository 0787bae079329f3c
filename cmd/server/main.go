package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/listingest/internal/config"
	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
	"github.com/JonMunkholm/listingest/internal/store"
	"github.com/JonMunkholm/listingest/internal/watch"
	"github.com/JonMunkholm/listingest/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"target_pool_size", cfg.Distribution.TargetPoolSize,
		"persist_atomic", cfg.Persist.Atomic,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()
	slog.Info("store connected", "driver", cfg.Store.Driver)

	engine := core.NewEngine(backend, cfg.EngineConfig())
	limiter := core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	server := web.NewServer(engine, backend, limiter, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Sweep.Enabled {
		sweeper := core.NewSweeper(backend, core.SweepConfig{
			Interval: cfg.Sweep.Interval,
			MaxAge:   cfg.Upload.Timeout,
		})
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	if cfg.Watch.Dir != "" {
		w, err := watch.New(watch.Config{
			Dir:         cfg.Watch.Dir,
			Kind:        core.RecordKind(cfg.Watch.Kind),
			OwnerID:     cfg.Watch.Owner,
			Debounce:    cfg.Watch.Debounce,
			MaxFileSize: cfg.Upload.MaxFileSize,
			Timeout:     cfg.Upload.Timeout,
		}, engine, watch.WithLimiter(limiter))
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active uploads to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
