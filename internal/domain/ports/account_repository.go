package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// AccountRepository defines persistence for ledger accounts. Absent rows are
// reported as domain.ErrAccountNotFound, never as a nil account.
type AccountRepository interface {
	// Create inserts a new account. Inserting a duplicate (owner_ref, kind)
	// pair is a no-op; callers re-read to obtain the surviving row.
	Create(ctx context.Context, tx DBTX, account *models.Account) error

	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.Account, error)

	// GetForUpdate reads the account row under a row-level lock. Must be
	// called inside a write transaction; the lock is held until the
	// transaction ends, serializing concurrent transfers on the account.
	GetForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*models.Account, error)

	GetByOwnerAndKind(ctx context.Context, db DBTX, ownerRef string, kind models.AccountKind) (*models.Account, error)

	// UpdateBalance overwrites the stored balance. Only the ledger service
	// calls this, inside the same transaction that holds the row locks.
	UpdateBalance(ctx context.Context, tx DBTX, id uuid.UUID, balance decimal.Decimal) error

	SetActive(ctx context.Context, tx DBTX, id uuid.UUID, active bool) error

	ListByKind(ctx context.Context, db DBTX, kind models.AccountKind, limit, offset int32) ([]*models.Account, error)
}
