package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"

	"github.com/phrazzld/sage-api/internal/config"
)

// MigrationTableName is the name of the table used by goose to track migrations.
const MigrationTableName = "schema_migrations"

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf does NOT call os.Exit; the error is returned to main, which owns
// process exit.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

// configureGoose applies the shared goose settings and returns the
// migrations directory.
func configureGoose() (string, error) {
	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return "", fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetTableName(MigrationTableName)

	dir, err := findMigrationsDir()
	if err != nil {
		return "", err
	}
	return dir, nil
}

// migrateUp applies all pending migrations. It runs at every server start
// so a fresh database comes up with the full schema.
func migrateUp(db *sql.DB, logger *slog.Logger) error {
	dir, err := configureGoose()
	if err != nil {
		return err
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("Database schema is up to date", "version", version)
	return nil
}

// runMigrationCommand executes one migration command against the configured
// database and returns. It backs the -migrate flag.
func runMigrationCommand(cfg *config.Config, command, migrationName string) error {
	db, err := setupAppDatabase(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to connect for migrations: %w", err)
	}
	defer closeDatabase(db, slog.Default())

	dir, err := configureGoose()
	if err != nil {
		return err
	}

	slog.Info("Executing migration command", "command", command, "dir", dir)

	switch command {
	case "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "version":
		return goose.Version(db, dir)
	case "create":
		if migrationName == "" {
			return fmt.Errorf("migration name is required for 'create' command")
		}
		return goose.Create(db, dir, migrationName, "sql")
	default:
		return fmt.Errorf(
			"unknown migration command: %s (expected up, down, status, version, or create)",
			command,
		)
	}
}

// findMigrationsDir locates the migrations directory relative to the
// project root, identified by the nearest go.mod above the working
// directory.
func findMigrationsDir() (string, error) {
	root, err := findProjectRoot()
	if err != nil {
		return "", fmt.Errorf("failed to find project root: %w", err)
	}

	dir := filepath.Join(root, "internal", "platform", "postgres", "migrations")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("migrations directory not found at %s", dir)
	}
	return dir, nil
}

// findProjectRoot walks up from the working directory until it finds a
// go.mod file.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("project root not found (no go.mod found in directory tree)")
}

// maskDatabaseURL masks the password in a database URL for safe logging.
func maskDatabaseURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}

	if _, hasPassword := parsedURL.User.Password(); hasPassword {
		parsedURL.User = url.UserPassword(parsedURL.User.Username(), "****")
	}

	return parsedURL.String()
}
