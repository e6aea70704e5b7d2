package ingest

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/model"
)

// OFXParser reads OFX/QFX bank statements into bank-feed transactions.
type OFXParser struct{}

// NewOFXParser creates an OFX statement parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Parse reads an OFX document and normalizes its bank and credit-card
// statement transactions.
func (p *OFXParser) Parse(r io.Reader, account model.Account) ([]model.BankFeedTransaction, error) {
	resp, err := ofxgo.ParseResponse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX document: %w", err)
	}

	var transactions []model.BankFeedTransaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			transactions = append(transactions, p.convert(stmt.BankTranList.Transactions, account)...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			transactions = append(transactions, p.convert(stmt.BankTranList.Transactions, account)...)
		}
	}

	slog.Info("Parsed OFX statement",
		"account", account.String(),
		"transactions", len(transactions))
	return transactions, nil
}

func (p *OFXParser) convert(ofxTxns []ofxgo.Transaction, account model.Account) []model.BankFeedTransaction {
	var out []model.BankFeedTransaction
	for _, ofxTxn := range ofxTxns {
		// OFX records debits as negative amounts.
		amountFloat, _ := ofxTxn.TrnAmt.Float64()
		amount := decimal.NewFromFloat(amountFloat)

		var paid, change decimal.Decimal
		if amount.IsNegative() {
			paid = amount.Neg()
		} else {
			change = amount
		}

		payee := string(ofxTxn.Name)
		if ofxTxn.Payee != nil && ofxTxn.Payee.Name != "" {
			payee = string(ofxTxn.Payee.Name)
		}

		txn, err := model.NewBankFeedTransaction(
			ofxTxn.DtPosted.Time, account.Currency, paid, change,
			payee, decimal.Decimal{}, string(ofxTxn.FiTID))
		if err != nil {
			slog.Warn("Dropping unusable OFX transaction",
				"account", account.String(),
				"fitid", string(ofxTxn.FiTID),
				"error", err)
			continue
		}
		out = append(out, txn)
	}
	return out
}
