package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql

	"github.com/phrazzld/sage-api/internal/config"
)

// setupAppDatabase establishes a connection to the database and configures
// connection pools. Returns the database connection if successful, or an
// error if the connection fails.
func setupAppDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool with reasonable defaults
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		closeDatabase(db, logger)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		"url", maskDatabaseURL(cfg.Database.URL))
	return db, nil
}

// closeDatabase closes the connection pool, logging rather than returning
// any error since callers are already on a shutdown or failure path.
func closeDatabase(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
	}
}
