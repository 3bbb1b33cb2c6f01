package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bootcamp/internal/config"
	"github.com/JonMunkholm/bootcamp/internal/core"
	_ "github.com/JonMunkholm/bootcamp/internal/core/importers" // Register importers
	"github.com/JonMunkholm/bootcamp/internal/database"
	"github.com/JonMunkholm/bootcamp/internal/logging"
	"github.com/JonMunkholm/bootcamp/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"curriculum_policy", cfg.Import.CurriculumPolicy,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"require_auth", cfg.Security.RequireAuth,
	)

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := database.New(pool)
	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	service := core.NewService(store, core.ServiceConfig{
		MaxFileSize:          cfg.Import.MaxFileSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWaitTime:       cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		ResultTTL:            cfg.Import.ResultTTL,
		CurriculumPolicy:     core.ParseFailurePolicy(cfg.Import.CurriculumPolicy),
		BaseURL:              cfg.Links.BaseURL,
		AuditEnabled:         cfg.Audit.Enabled,
	})

	importers := service.ListImporters()
	slog.Info("importers registered", "count", len(importers))
	for _, imp := range importers {
		slog.Debug("importer", "key", imp.Key, "columns", len(imp.Columns))
	}

	server, err := web.NewServer(service, cfg)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	if cfg.Audit.Enabled {
		go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
			RetentionDays: cfg.Audit.RetentionDays,
			CheckInterval: cfg.Audit.CheckInterval,
		})
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running imports finish; cancel whatever is left at the deadline.
		if status := service.ImportStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time, cancelling", "error", err)
				service.CancelAllJobs()
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
