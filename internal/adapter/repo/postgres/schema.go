package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements bootstraps the durable tier idempotently. A single
// codes table keyed by (game_id, code) stands in for a table per game: a
// composite index serves the same partition-by-game access pattern without
// the operational cost of provisioning a table per catalog entry.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS codes (
		id BIGSERIAL PRIMARY KEY,
		game_id TEXT NOT NULL,
		code TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (game_id, code)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_codes_game_created ON codes (game_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'free',
		daily_request_count INT NOT NULL DEFAULT 0,
		last_reset_date DATE NOT NULL DEFAULT CURRENT_DATE,
		last_request_time TIMESTAMPTZ,
		total_keys_generated BIGINT NOT NULL DEFAULT 0,
		is_banned BOOLEAN NOT NULL DEFAULT FALSE,
		role TEXT NOT NULL DEFAULT 'user',
		notes TEXT NOT NULL DEFAULT '',
		is_subscribed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_subscribed ON users (is_subscribed) WHERE is_subscribed`,

	`CREATE TABLE IF NOT EXISTS user_actions (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (user_id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_actions_created ON user_actions (created_at)`,
}

// Bootstrap runs every schema statement inside one transaction. It is safe
// to call on every process start: every statement is an IF NOT EXISTS form.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=postgres.bootstrap: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("op=postgres.bootstrap: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=postgres.bootstrap: commit: %w", err)
	}
	return nil
}
