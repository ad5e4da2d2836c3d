package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"movie-interactions-service/internal/config"
)

// NewPostgres opens the shared connection pool and makes sure the tables exist.
func NewPostgres(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName, "max_open_conns", cfg.MaxOpenConns)

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	return db, nil
}

// Schema lists the bootstrap statements. They are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username VARCHAR(255) PRIMARY KEY,
		created_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS liked_movies (
		id SERIAL PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		movie_id VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT NOW(),
		UNIQUE (username, movie_id)
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist_movies (
		id SERIAL PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		movie_id VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT NOW(),
		UNIQUE (username, movie_id)
	)`,
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w\nSQL: %s", err, stmt)
		}
	}

	slog.Info("database schema ready")
	return nil
}
