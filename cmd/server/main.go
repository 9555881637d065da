package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/guaruja-saneamento/adesoes/internal/app"
	"github.com/guaruja-saneamento/adesoes/internal/config"
	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/logging"
	"github.com/guaruja-saneamento/adesoes/internal/photos"
	"github.com/guaruja-saneamento/adesoes/internal/presence"
	"github.com/guaruja-saneamento/adesoes/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := core.Migrate(ctx, a.Pool); err != nil {
		return err
	}

	var resolver *photos.Resolver
	if cfg.Photos.Region != "" {
		resolver, err = photos.NewS3Resolver(ctx, cfg.Photos.Region, cfg.Photos.PresignTTL)
		if err != nil {
			return err
		}
		slog.Info("photo references presigned through S3", "region", cfg.Photos.Region)
	}

	registry := presence.NewRegistry()
	server := web.NewServer(cfg, web.Deps{
		Service:  a.Service,
		Auth:     a.Auth,
		Presence: registry,
		Photos:   resolver,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error {
		return a.Service.RunAuditRetention(gctx, core.RetentionConfig{
			Days:          cfg.Audit.RetentionDays,
			CheckInterval: cfg.Audit.CheckInterval,
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := a.Service.Limiter().Active(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if err := a.Service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
