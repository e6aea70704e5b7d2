package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/model"
)

func TestAssetCSVLedger_AppendAndContains(t *testing.T) {
	ledger, err := NewAssetCSVLedger(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	leg := mustLeg(t, day(2025, time.June, 15), 12.50)

	present, err := ledger.Contains(ctx, testAccount, leg.Hash())
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, ledger.Append(ctx, testAccount, leg))

	present, err = ledger.Contains(ctx, testAccount, leg.Hash())
	require.NoError(t, err)
	assert.True(t, present)
}

func TestAssetCSVLedger_RefusesDuplicate(t *testing.T) {
	ledger, err := NewAssetCSVLedger(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	leg := mustLeg(t, day(2025, time.June, 15), 12.50)
	require.NoError(t, ledger.Append(ctx, testAccount, leg))

	err = ledger.Append(ctx, testAccount, leg)
	assert.ErrorIs(t, err, common.ErrDuplicateExport)
}

func TestAssetCSVLedger_RowLayout(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewAssetCSVLedger(dir)
	require.NoError(t, err)
	ctx := context.Background()

	first := mustLeg(t, day(2025, time.June, 15), 12.50)
	second := mustLeg(t, day(2025, time.June, 16), 7.25)
	require.NoError(t, ledger.Append(ctx, testAccount, first))
	require.NoError(t, ledger.Append(ctx, testAccount, second))

	f, err := os.Open(filepath.Join(dir, "assets_"+testAccount.Slug()+".csv"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two data rows")

	assert.Equal(t, assetHeader, rows[0])
	assert.Equal(t, "2025-06-15", rows[1][0])
	assert.Equal(t, "Jo Naylor", rows[1][1])
	assert.Equal(t, "12.50", rows[1][5])
	assert.Equal(t, first.Hash(), rows[1][assetHashColumn])
	assert.Equal(t, second.Hash(), rows[2][assetHashColumn])
}

func TestAssetCSVLedger_SeparateFilePerAccount(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewAssetCSVLedger(dir)
	require.NoError(t, err)
	ctx := context.Background()

	other := model.Account{Holder: "Jo Naylor", Bank: "Wallet", Kind: "cash", Currency: "EUR"}
	leg := mustLeg(t, day(2025, time.June, 15), 12.50)
	require.NoError(t, ledger.Append(ctx, testAccount, leg))

	// The same hash in a different account's ledger is not a duplicate.
	otherLeg, err := model.NewAccountTransaction(other, day(2025, time.June, 15), "EUR",
		leg.AmountOut(), leg.ChangeReturned())
	require.NoError(t, err)
	require.NoError(t, ledger.Append(ctx, other, otherLeg))

	present, err := ledger.Contains(ctx, other, leg.Hash())
	require.NoError(t, err)
	assert.False(t, present)
}
