package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// InitDB initializes the PostgreSQL connection pool
func InitDB(connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	Pool, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := Pool.Ping(context.Background()); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("Connected to PostgreSQL")
	return nil
}

// CloseDB closes the database connection pool
func CloseDB() {
	if Pool != nil {
		Pool.Close()
	}
}

// Migrate creates the BarqPix schema if it does not exist.
func Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			organizer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			starts_at TIMESTAMPTZ,
			ends_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS qr_tokens (
			id UUID PRIMARY KEY,
			target_type TEXT NOT NULL,
			target_id UUID,
			quick_id UUID UNIQUE,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			scan_count INTEGER NOT NULL DEFAULT 0,
			CHECK (expires_at IS NULL OR expires_at > created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS quick_sessions (
			quick_id UUID PRIMARY KEY,
			token_id UUID NOT NULL REFERENCES qr_tokens(id) ON DELETE CASCADE,
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scan_logs (
			id SERIAL PRIMARY KEY,
			token_id UUID NOT NULL REFERENCES qr_tokens(id) ON DELETE CASCADE,
			scanner_id TEXT,
			scanner_name TEXT,
			scanned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS photos (
			id UUID PRIMARY KEY,
			quick_id UUID REFERENCES quick_sessions(quick_id) ON DELETE CASCADE,
			event_id UUID REFERENCES events(id) ON DELETE CASCADE,
			uploader_id UUID,
			uploader_name TEXT NOT NULL DEFAULT 'anonymous',
			filename TEXT NOT NULL,
			url TEXT NOT NULL,
			thumb_url TEXT NOT NULL DEFAULT '',
			caption TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (quick_id IS NOT NULL OR event_id IS NOT NULL)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_quick ON photos(quick_id, uploaded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_event ON photos(event_id, uploaded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expiry ON qr_tokens(expires_at) WHERE expires_at IS NOT NULL`,
	}

	for _, stmt := range statements {
		if _, err := Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
