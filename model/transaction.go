package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeContribution = "contribution"
	TransactionTypeLoan         = "loan"
	TransactionTypeRepayment    = "repayment"
)

// Transaction is an append-only log entry produced by a confirmed ledger
// operation. Records are never mutated after creation.
type Transaction struct {
	ID            int64           `json:"-"`
	TransactionID string          `json:"transaction_id"`
	LedgerHash    string          `json:"hash"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Source        string          `json:"from"`
	Destination   string          `json:"to"`
	CircleID      string          `json:"circle_id,omitempty"`
	CreatedAt     time.Time       `json:"timestamp"`
}

// HashTxn generates a SHA-256 hash over the transaction's payment fields so
// a record can be checked against what was submitted to the ledger.
func (transaction *Transaction) HashTxn() string {
	data := fmt.Sprintf("%s%s%s%s", transaction.Amount.String(), transaction.Type, transaction.Source, transaction.Destination)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
