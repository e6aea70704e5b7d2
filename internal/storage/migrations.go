package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// expectedSchemaVersion is the latest schema version the application expects.
const expectedSchemaVersion = 1

// migration is one versioned schema step.
type migration struct {
	up          func(*sql.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "Resolution audit table",
		up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS resolutions (
					id TEXT PRIMARY KEY,
					receipt_key TEXT NOT NULL,
					leg_hash TEXT NOT NULL,
					bank_hash TEXT,
					outcome TEXT NOT NULL,
					date_margin_days INTEGER NOT NULL,
					amount_fraction TEXT NOT NULL,
					resolved_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_resolutions_receipt ON resolutions(receipt_key)`,
				`CREATE INDEX idx_resolutions_bank ON resolutions(bank_hash)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the audit schema up to the expected version.
func (s *AuditStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		slog.Info("Applied audit schema migration",
			"version", m.version,
			"description", m.description)
	}

	if current > expectedSchemaVersion {
		return fmt.Errorf("audit database schema version %d is newer than expected %d", current, expectedSchemaVersion)
	}
	return nil
}
