package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/recmatch/recmatch/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// AuditStore records resolution outcomes in a SQLite database.
type AuditStore struct {
	db     *sql.DB
	dbPath string
}

// NewAuditStore opens (or creates) the audit database.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("audit database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	return &AuditStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// RecordResolution inserts one resolution outcome. A missing ID is assigned.
func (s *AuditStore) RecordResolution(ctx context.Context, record service.ResolutionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ResolvedAt.IsZero() {
		record.ResolvedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions (id, receipt_key, leg_hash, bank_hash, outcome, date_margin_days, amount_fraction, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ReceiptKey, record.LegHash, record.BankHash,
		record.Outcome, record.DateMarginDays, record.AmountFraction, record.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}
	return nil
}

// ListResolutions returns the audited outcomes for one receipt, oldest first.
func (s *AuditStore) ListResolutions(ctx context.Context, receiptKey string) ([]service.ResolutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_key, leg_hash, bank_hash, outcome, date_margin_days, amount_fraction, resolved_at
		FROM resolutions
		WHERE receipt_key = ?
		ORDER BY resolved_at`, receiptKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []service.ResolutionRecord
	for rows.Next() {
		var record service.ResolutionRecord
		if err := rows.Scan(&record.ID, &record.ReceiptKey, &record.LegHash, &record.BankHash,
			&record.Outcome, &record.DateMarginDays, &record.AmountFraction, &record.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolutions: %w", err)
	}
	return records, nil
}
