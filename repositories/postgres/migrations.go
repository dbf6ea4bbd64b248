package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version int64
	name    string
	stmt    string
}

// migrations are applied in order and recorded in schema_migrations.
// Append only; never edit an applied migration.
var migrations = []migration{
	{
		version: 1,
		name:    "companies_and_users",
		stmt: `
			CREATE TABLE IF NOT EXISTS companies (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				company_id UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				name VARCHAR(100) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(16) NOT NULL CHECK (role IN ('OWNER', 'ADMIN', 'USER')),
				email_verified BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_users_company_id ON users(company_id, created_at, id);
		`,
	},
	{
		version: 2,
		name:    "audit_logs",
		stmt: `
			CREATE TABLE IF NOT EXISTS audit_logs (
				id UUID PRIMARY KEY,
				company_id UUID NOT NULL,
				user_id UUID,
				action VARCHAR(64) NOT NULL,
				entity VARCHAR(64),
				entity_id VARCHAR(255),
				metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_audit_logs_company_created ON audit_logs(company_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_audit_logs_company_action ON audit_logs(company_id, action);
		`,
	},
	{
		version: 3,
		name:    "sessions_and_action_tokens",
		stmt: `
			CREATE TABLE IF NOT EXISTS sessions (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				company_id UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				user_agent TEXT NOT NULL DEFAULT '',
				ip_address VARCHAR(45) NOT NULL DEFAULT '',
				expires_at TIMESTAMPTZ NOT NULL,
				revoked_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
			CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

			CREATE TABLE IF NOT EXISTS action_tokens (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				purpose VARCHAR(32) NOT NULL,
				token_hash CHAR(64) NOT NULL UNIQUE,
				expires_at TIMESTAMPTZ NOT NULL,
				used_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_action_tokens_expires_at ON action_tokens(expires_at);
		`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations
func (db *DB) Migrate(ctx context.Context) error {
	createMigrationsTable := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int64]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating migration rows: %w", err)
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		db.logger.Info("migration applied",
			zap.Int64("version", m.version),
			zap.String("name", m.name))
	}

	return nil
}
