package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/model"
)

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validAccounts = `
accounts:
  - holder: Jo Naylor
    bank: Fern Bank
    type: checking
    currency: EUR
    feed:
      csv: feeds/fern.csv
      columns:
        - source: Booking Date
          field: date
        - source: Amount
          field: amount
  - holder: Jo Naylor
    bank: Wallet
    type: cash
    currency: EUR
margins:
  date_days: 3
  amount_fraction: 0.1
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeAccountsFile(t, validAccounts))
	require.NoError(t, err)

	require.Len(t, cfg.Accounts, 2)
	assert.True(t, cfg.Accounts[0].HasFeed())
	assert.False(t, cfg.Accounts[1].HasFeed())

	feed := cfg.FeedAccounts()
	require.Len(t, feed, 1)
	assert.Equal(t, model.Account{Holder: "Jo Naylor", Bank: "Fern Bank", Kind: "checking", Currency: "EUR"}, feed[0])

	feedless := cfg.FeedlessAccounts()
	require.Len(t, feedless, 1)
	assert.Equal(t, "Wallet", feedless[0].Bank)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no accounts", content: "accounts: []\n"},
		{name: "missing holder", content: `
accounts:
  - bank: Fern Bank
    type: checking
    currency: EUR
`},
		{name: "duplicate account", content: `
accounts:
  - holder: Jo Naylor
    bank: Fern Bank
    type: checking
    currency: EUR
  - holder: Jo Naylor
    bank: Fern Bank
    type: checking
    currency: EUR
`},
		{name: "both csv and ofx", content: `
accounts:
  - holder: Jo Naylor
    bank: Fern Bank
    type: checking
    currency: EUR
    feed:
      csv: feeds/fern.csv
      ofx: feeds/fern.ofx
`},
		{name: "csv feed without columns", content: `
accounts:
  - holder: Jo Naylor
    bank: Fern Bank
    type: checking
    currency: EUR
    feed:
      csv: feeds/fern.csv
`},
		{name: "negative margins", content: `
accounts:
  - holder: Jo Naylor
    bank: Wallet
    type: cash
    currency: EUR
margins:
  date_days: -1
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeAccountsFile(t, tt.content))
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestMatchMargins(t *testing.T) {
	cfg, err := Load(writeAccountsFile(t, validAccounts))
	require.NoError(t, err)

	margins := cfg.MatchMargins()
	assert.Equal(t, 3, margins.DateDays)
	assert.Equal(t, "0.1", margins.AmountFraction.String())
	assert.True(t, margins.AutoSwap, "absent auto_swap keeps the default")
	assert.False(t, margins.AllowSharedBankLinks)
}

func TestMatchMargins_Defaults(t *testing.T) {
	cfg, err := Load(writeAccountsFile(t, `
accounts:
  - holder: Jo Naylor
    bank: Wallet
    type: cash
    currency: EUR
`))
	require.NoError(t, err)

	defaults := model.DefaultMargins()
	margins := cfg.MatchMargins()
	assert.Equal(t, defaults.DateDays, margins.DateDays)
	assert.True(t, defaults.AmountFraction.Equal(margins.AmountFraction))
	assert.Equal(t, defaults.AutoSwap, margins.AutoSwap)
}

func TestMatchMargins_ExplicitZeros(t *testing.T) {
	cfg, err := Load(writeAccountsFile(t, `
accounts:
  - holder: Jo Naylor
    bank: Wallet
    type: cash
    currency: EUR
margins:
  date_days: 0
  amount_fraction: 0
`))
	require.NoError(t, err)

	// Zero is a real setting (same-day, exact-amount matching), not an
	// absent key.
	margins := cfg.MatchMargins()
	assert.Equal(t, 0, margins.DateDays)
	assert.True(t, margins.AmountFraction.IsZero())
}

func TestMatchMargins_ExplicitAutoSwapOff(t *testing.T) {
	cfg, err := Load(writeAccountsFile(t, `
accounts:
  - holder: Jo Naylor
    bank: Wallet
    type: cash
    currency: EUR
margins:
  auto_swap: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.MatchMargins().AutoSwap)
}
