package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/model"
)

// Asset ledger column order. The trailing columns are classification
// placeholders filled in by the downstream rules generator.
var assetHeader = []string{"date", "holder", "bank", "account_type", "currency", "net_amount", "hash", "category", "notes"}

const assetHashColumn = 6

// AssetCSVLedger records payments from feedless accounts, one append-only CSV
// per account. Appending a content hash that is already present is refused.
type AssetCSVLedger struct {
	dir string
}

// NewAssetCSVLedger creates the ledger directory if needed.
func NewAssetCSVLedger(dir string) (*AssetCSVLedger, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset ledger directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create asset ledger directory: %w", err)
	}
	return &AssetCSVLedger{dir: dir}, nil
}

func (l *AssetCSVLedger) path(account model.Account) string {
	return filepath.Join(l.dir, "assets_"+account.Slug()+".csv")
}

// Contains reports whether the account's ledger already holds the hash.
func (l *AssetCSVLedger) Contains(ctx context.Context, account model.Account, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f, err := os.Open(l.path(account))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open asset ledger for %s: %w", account, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to read asset ledger for %s: %w", account, err)
		}
		if first {
			first = false
			continue
		}
		if len(row) > assetHashColumn && row[assetHashColumn] == hash {
			return true, nil
		}
	}
}

// Append adds one row for the payment leg. The membership check is repeated
// here so Append alone upholds the no-duplicate invariant.
func (l *AssetCSVLedger) Append(ctx context.Context, account model.Account, leg model.AccountTransaction) error {
	present, err := l.Contains(ctx, account, leg.Hash())
	if err != nil {
		return err
	}
	if present {
		return fmt.Errorf("%w: leg %s on account %s", common.ErrDuplicateExport, leg.Hash(), account)
	}

	path := l.path(account)
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open asset ledger for %s: %w", account, err)
	}
	defer func() { _ = f.Close() }()

	writer := csv.NewWriter(f)
	if writeHeader {
		if err := writer.Write(assetHeader); err != nil {
			return fmt.Errorf("failed to write asset ledger header: %w", err)
		}
	}

	row := []string{
		leg.Date().Format("2006-01-02"),
		account.Holder,
		account.Bank,
		account.Kind,
		leg.Currency(),
		model.Net(leg).StringFixed(2),
		leg.Hash(),
		"", // category, filled by the rules generator
		"",
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to append asset row for %s: %w", account, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush asset ledger for %s: %w", account, err)
	}
	return nil
}
