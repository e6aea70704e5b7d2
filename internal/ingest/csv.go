// Package ingest turns bank-provided statement files into bank-feed
// transactions for the candidate pool.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/model"
)

// Normalized field names a column rule may map onto.
const (
	FieldDate           = "date"
	FieldAmount         = "amount"
	FieldAmountOut      = "amount_out"
	FieldChangeReturned = "change_returned"
	FieldPayee          = "payee"
	FieldBalance        = "balance"
	FieldReference      = "reference"
	FieldCurrency       = "currency"
)

// ColumnRule maps one source CSV header onto a normalized field.
type ColumnRule struct {
	Source string `yaml:"source"`
	Field  string `yaml:"field"`
}

// dateLayouts are tried in order when parsing statement dates. Banks are not
// consistent about this.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// CSVParser applies a configurable column mapping to bank CSV rows.
type CSVParser struct {
	rules []ColumnRule
}

// NewCSVParser validates the mapping: a date column and either a signed
// amount column or an explicit amount_out column are required.
func NewCSVParser(rules []ColumnRule) (*CSVParser, error) {
	var hasDate, hasAmount bool
	seen := make(map[string]bool)
	for _, rule := range rules {
		if rule.Source == "" || rule.Field == "" {
			return nil, fmt.Errorf("%w: column rule needs both source and field", common.ErrInvalidConfig)
		}
		if seen[rule.Field] {
			return nil, fmt.Errorf("%w: field %q mapped twice", common.ErrInvalidConfig, rule.Field)
		}
		seen[rule.Field] = true
		switch rule.Field {
		case FieldDate:
			hasDate = true
		case FieldAmount, FieldAmountOut:
			hasAmount = true
		case FieldChangeReturned, FieldPayee, FieldBalance, FieldReference, FieldCurrency:
		default:
			return nil, fmt.Errorf("%w: unknown normalized field %q", common.ErrInvalidConfig, rule.Field)
		}
	}
	if !hasDate || !hasAmount {
		return nil, fmt.Errorf("%w: column mapping needs a date and an amount", common.ErrInvalidConfig)
	}
	return &CSVParser{rules: rules}, nil
}

// Parse reads a bank CSV and returns its rows as bank-feed transactions.
// Rows that fail validation are logged and dropped; real feeds carry junk
// lines and one bad row must not sink the import.
func (p *CSVParser) Parse(r io.Reader, account model.Account) ([]model.BankFeedTransaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int)
	for _, rule := range p.rules {
		found := false
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), rule.Source) {
				columns[rule.Field] = i
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: source column %q not in CSV header", common.ErrInvalidConfig, rule.Source)
		}
	}

	var transactions []model.BankFeedTransaction
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}

		txn, err := p.convertRow(row, columns, account)
		if err != nil {
			slog.Warn("Dropping unparseable feed row",
				"account", account.String(),
				"line", line,
				"error", err)
			continue
		}
		transactions = append(transactions, txn)
	}

	slog.Info("Parsed bank CSV",
		"account", account.String(),
		"transactions", len(transactions))
	return transactions, nil
}

func (p *CSVParser) convertRow(row []string, columns map[string]int, account model.Account) (model.BankFeedTransaction, error) {
	cell := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := parseDate(cell(FieldDate))
	if err != nil {
		return model.BankFeedTransaction{}, err
	}

	var out, change decimal.Decimal
	if _, ok := columns[FieldAmountOut]; ok {
		out, err = parseAmount(cell(FieldAmountOut))
		if err != nil {
			return model.BankFeedTransaction{}, err
		}
		if raw := cell(FieldChangeReturned); raw != "" {
			change, err = parseAmount(raw)
			if err != nil {
				return model.BankFeedTransaction{}, err
			}
		}
	} else {
		// Single signed amount column: negative means money out,
		// positive means money returned.
		amount, err := parseAmount(cell(FieldAmount))
		if err != nil {
			return model.BankFeedTransaction{}, err
		}
		if amount.IsNegative() {
			out = amount.Neg()
		} else {
			change = amount
		}
	}

	currency := cell(FieldCurrency)
	if currency == "" {
		currency = account.Currency
	}

	var balance decimal.Decimal
	if raw := cell(FieldBalance); raw != "" {
		balance, err = parseAmount(raw)
		if err != nil {
			return model.BankFeedTransaction{}, err
		}
	}

	return model.NewBankFeedTransaction(date, currency, out, change,
		cell(FieldPayee), balance, cell(FieldReference))
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", common.ErrValidation)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", common.ErrValidation, raw)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: unparseable amount %q", common.ErrValidation, raw)
	}
	return amount, nil
}
