// Package main implements the entry point for the Sage API server, which
// turns uploaded question documents into answered, diagram-annotated PDF
// documents using LLM providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/phrazzld/sage-api/internal/config"
	"github.com/phrazzld/sage-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status, version, create) and exit")
	migrationName := flag.String("migration-name", "",
		"name of the migration to create (used with -migrate=create)")
	flag.Parse()

	// A .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	if *migrateCmd != "" {
		if err := runMigrationCommand(cfg, *migrateCmd, *migrationName); err != nil {
			slog.Error("Migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, appLogger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires the application together and serves until shutdown.
func run(cfg *config.Config, appLogger *slog.Logger) error {
	ctx := context.Background()

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if err := migrateUp(db, appLogger); err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
