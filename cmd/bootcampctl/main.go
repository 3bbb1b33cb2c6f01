// Command bootcampctl runs portal operations from a terminal: CSV imports
// with a progress view, sample templates, admin password hashes and an
// interactive menu.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bootcamp/internal/config"
	"github.com/JonMunkholm/bootcamp/internal/core"
	_ "github.com/JonMunkholm/bootcamp/internal/core/importers" // Register importers
	"github.com/JonMunkholm/bootcamp/internal/database"
	"github.com/JonMunkholm/bootcamp/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cli := &commandLine{
		out:     os.Stdout,
		connect: connect,
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

// connect opens the database and builds a Service from the environment.
func connect(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(os.Stderr, "warn", cfg.Logging.Format)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	store := database.New(pool)
	svc := core.NewService(store, core.ServiceConfig{
		MaxFileSize:          cfg.Import.MaxFileSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWaitTime:       cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		ResultTTL:            cfg.Import.ResultTTL,
		CurriculumPolicy:     core.ParseFailurePolicy(cfg.Import.CurriculumPolicy),
		BaseURL:              cfg.Links.BaseURL,
		AuditEnabled:         cfg.Audit.Enabled,
	})
	slog.Debug("connected", "importers", len(svc.ListImporters()))
	return &backend{svc: svc, migrate: store.EnsureSchema, close: pool.Close}, nil
}
