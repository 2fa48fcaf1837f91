package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	referenceapp "github.com/healthbudget/backend/internal/application/reference"
	"github.com/healthbudget/backend/internal/infrastructure/config"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{Out: os.Stdout}
	var db *persistence.Database
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	connect := func(ctx context.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		zap.ReplaceGlobals(log)

		db, err = persistence.Open(&cfg.Database,
			logger.NewGormLogger(log, logger.MapGormLogLevel("warn")))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}

		refs := persistence.NewGormReferenceRepository(db.DB)
		app.Seeder = referenceapp.NewSeeder(refs)
		app.Programs = referenceapp.NewService(refs)
		app.Templates = budgetapp.NewTemplateService(persistence.NewGormTemplateRepository(db.DB), budgetapp.Runtime{})
		return nil
	}

	return newRootCmd(app, connect).ExecuteContext(ctx)
}
