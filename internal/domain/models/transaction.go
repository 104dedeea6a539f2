package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the current state of a ledger transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// TransactionKind represents why value moved between two accounts
type TransactionKind string

const (
	TransactionSettlementPayout TransactionKind = "SETTLEMENT_PAYOUT"
	TransactionSettlementFee    TransactionKind = "SETTLEMENT_FEE"
	TransactionReversal         TransactionKind = "REVERSAL"
	TransactionAdjustment       TransactionKind = "ADJUSTMENT"
)

// Transaction is one atomic movement of value between exactly two accounts.
// Once COMPLETED it is immutable; corrections happen via a new REVERSAL
// transaction, never by editing history. FAILED transactions are retained for
// audit and never affect balances.
type Transaction struct {
	ID            uuid.UUID
	Reference     string
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Kind          TransactionKind
	Status        TransactionStatus
	Description   string
	PayoutID      *uuid.UUID
	CreatedAt     time.Time
}

// NewTransactionReference generates a unique ledger reference.
func NewTransactionReference() string {
	return fmt.Sprintf("TXN-%s", uuid.NewString())
}
