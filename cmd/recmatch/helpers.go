package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/recmatch/recmatch/internal/config"
	"github.com/recmatch/recmatch/internal/ingest"
	"github.com/recmatch/recmatch/internal/match"
	"github.com/recmatch/recmatch/internal/storage"
)

// dataPath resolves a path inside the configured data directory.
func dataPath(parts ...string) string {
	base := viper.GetString("data.dir")
	if base == "" {
		base = "."
	}
	return filepath.Join(append([]string{base}, parts...)...)
}

// openStores builds the receipt store, asset ledger, and migrated audit log.
func openStores(ctx context.Context) (*storage.ReceiptDir, *storage.AssetCSVLedger, *storage.AuditStore, error) {
	receipts, err := storage.NewReceiptDir(dataPath("receipts"))
	if err != nil {
		return nil, nil, nil, err
	}
	ledger, err := storage.NewAssetCSVLedger(dataPath("assets"))
	if err != nil {
		return nil, nil, nil, err
	}
	audit, err := storage.NewAuditStore(dataPath("audit", "resolutions.db"))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := audit.Migrate(ctx); err != nil {
		_ = audit.Close()
		return nil, nil, nil, err
	}
	return receipts, ledger, audit, nil
}

// buildPool ingests every configured feed into the candidate pool.
func buildPool(cfg *config.Config) (match.Pool, error) {
	pool := match.NewPool()

	for _, accountCfg := range cfg.Accounts {
		if !accountCfg.HasFeed() {
			continue
		}
		account := accountCfg.Account()

		switch {
		case accountCfg.Feed.CSV != "":
			parser, err := ingest.NewCSVParser(accountCfg.Feed.Columns)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", account, err)
			}
			f, err := os.Open(accountCfg.Feed.CSV)
			if err != nil {
				return nil, fmt.Errorf("failed to open feed for %s: %w", account, err)
			}
			txns, err := parser.Parse(f, account)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", account, err)
			}
			for _, txn := range txns {
				pool.Add(account, txn)
			}

		case accountCfg.Feed.OFX != "":
			f, err := os.Open(accountCfg.Feed.OFX)
			if err != nil {
				return nil, fmt.Errorf("failed to open feed for %s: %w", account, err)
			}
			txns, err := ingest.NewOFXParser().Parse(f, account)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", account, err)
			}
			for _, txn := range txns {
				pool.Add(account, txn)
			}
		}
	}
	return pool, nil
}
