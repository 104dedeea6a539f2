package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind represents the role of a ledger account
type AccountKind string

const (
	// AccountHolding is the shared pool that receives customer payments
	// before they are split and distributed.
	AccountHolding AccountKind = "HOLDING"
	// AccountProvider holds an individual therapist's earnings.
	AccountProvider AccountKind = "PROVIDER"
	// AccountPlatform holds the platform's commission.
	AccountPlatform AccountKind = "PLATFORM"
)

// Well-known owner references for the shared accounts. Provider accounts use
// the therapist reference as owner.
const (
	HoldingOwnerRef  = "rubhub-holding"
	PlatformOwnerRef = "rubhub-platform"
)

// Account is a named ledger balance. Balances are only ever mutated by a
// paired transfer through the ledger service; accounts are deactivated, never
// deleted.
type Account struct {
	ID        uuid.UUID
	OwnerRef  string
	Kind      AccountKind
	Balance   decimal.Decimal
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDebit reports whether debiting amount would leave the balance
// non-negative. The holding account may be exempted when the platform
// pre-funds it (allowOverdraft).
func (a *Account) CanDebit(amount decimal.Decimal, allowOverdraft bool) bool {
	if a.Kind == AccountHolding && allowOverdraft {
		return true
	}
	return a.Balance.GreaterThanOrEqual(amount)
}
