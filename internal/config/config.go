// Package config loads the account roster and matching margins from the
// accounts file.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/ingest"
	"github.com/recmatch/recmatch/internal/model"
)

// FeedConfig describes where an account's bank feed comes from. Exactly one
// of CSV or OFX is set. An account without a feed block derives transactions
// only from receipts and exports to the asset ledger.
type FeedConfig struct {
	CSV     string              `yaml:"csv,omitempty"`
	OFX     string              `yaml:"ofx,omitempty"`
	Columns []ingest.ColumnRule `yaml:"columns,omitempty"`
}

// AccountConfig is one configured account.
type AccountConfig struct {
	Holder   string      `yaml:"holder"`
	Bank     string      `yaml:"bank"`
	Type     string      `yaml:"type"`
	Currency string      `yaml:"currency"`
	Feed     *FeedConfig `yaml:"feed,omitempty"`
}

// Account returns the model value for this configuration entry.
func (a AccountConfig) Account() model.Account {
	return model.Account{Holder: a.Holder, Bank: a.Bank, Kind: a.Type, Currency: a.Currency}
}

// HasFeed reports whether the account is backed by a live bank feed.
func (a AccountConfig) HasFeed() bool {
	return a.Feed != nil && (a.Feed.CSV != "" || a.Feed.OFX != "")
}

// MarginsConfig is the matching tolerance section of the accounts file.
// Tolerance fields are pointers so an absent key falls back to the default
// while an explicit zero is honored as a real setting (exact matching).
type MarginsConfig struct {
	DateDays         *int     `yaml:"date_days"`
	AmountFraction   *float64 `yaml:"amount_fraction"`
	AutoSwap         *bool    `yaml:"auto_swap"`
	AllowSharedLinks bool     `yaml:"allow_shared_links"`
}

// Config is the full accounts file.
type Config struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Margins  MarginsConfig   `yaml:"margins"`
}

// Load reads and validates an accounts file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("%w: no accounts configured", common.ErrInvalidConfig)
	}

	seen := make(map[model.Account]bool)
	for i, account := range c.Accounts {
		if account.Holder == "" || account.Bank == "" || account.Currency == "" {
			return fmt.Errorf("%w: account %d needs holder, bank and currency", common.ErrInvalidConfig, i)
		}
		key := account.Account()
		if seen[key] {
			return fmt.Errorf("%w: account %s configured twice", common.ErrInvalidConfig, key)
		}
		seen[key] = true

		if account.Feed != nil {
			if account.Feed.CSV != "" && account.Feed.OFX != "" {
				return fmt.Errorf("%w: account %s has both csv and ofx feeds", common.ErrInvalidConfig, key)
			}
			if account.Feed.CSV != "" && len(account.Feed.Columns) == 0 {
				return fmt.Errorf("%w: account %s has a csv feed without a column mapping", common.ErrInvalidConfig, key)
			}
		}
	}

	if c.Margins.DateDays != nil && *c.Margins.DateDays < 0 {
		return fmt.Errorf("%w: margins cannot be negative", common.ErrInvalidConfig)
	}
	if c.Margins.AmountFraction != nil && *c.Margins.AmountFraction < 0 {
		return fmt.Errorf("%w: margins cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}

// MatchMargins converts the margins section into the model value, falling
// back to defaults only for absent keys.
func (c *Config) MatchMargins() model.Margins {
	margins := model.DefaultMargins()
	if c.Margins.DateDays != nil {
		margins.DateDays = *c.Margins.DateDays
	}
	if c.Margins.AmountFraction != nil {
		margins.AmountFraction = decimal.NewFromFloat(*c.Margins.AmountFraction)
	}
	if c.Margins.AutoSwap != nil {
		margins.AutoSwap = *c.Margins.AutoSwap
	}
	margins.AllowSharedBankLinks = c.Margins.AllowSharedLinks
	return margins
}

// FeedAccounts returns the accounts backed by a live feed.
func (c *Config) FeedAccounts() []model.Account {
	var accounts []model.Account
	for _, a := range c.Accounts {
		if a.HasFeed() {
			accounts = append(accounts, a.Account())
		}
	}
	return accounts
}

// FeedlessAccounts returns the accounts that export to the asset ledger.
func (c *Config) FeedlessAccounts() []model.Account {
	var accounts []model.Account
	for _, a := range c.Accounts {
		if !a.HasFeed() {
			accounts = append(accounts, a.Account())
		}
	}
	return accounts
}
