package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// TransferParams describes one atomic movement of value between two accounts.
type TransferParams struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Kind          models.TransactionKind
	Description   string
	PayoutID      *uuid.UUID
}

// Ledger is the service-level contract the settlement engine drives transfers
// through. It is the sole mutation point for account balances.
type Ledger interface {
	Transfer(ctx context.Context, params TransferParams) (*models.Transaction, error)
	GetOrCreateAccount(ctx context.Context, ownerRef string, kind models.AccountKind) (*models.Account, error)
	GetAccountByOwnerAndKind(ctx context.Context, ownerRef string, kind models.AccountKind) (*models.Account, error)
}
