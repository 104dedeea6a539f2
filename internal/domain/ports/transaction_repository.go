package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// TransactionRepository defines persistence for the append-only transaction
// log. Rows are inserted once and never updated; reversals are new rows.
type TransactionRepository interface {
	Create(ctx context.Context, tx DBTX, txn *models.Transaction) error

	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.Transaction, error)
	GetByReference(ctx context.Context, db DBTX, reference string) (*models.Transaction, error)

	ListByPayout(ctx context.Context, db DBTX, payoutID uuid.UUID) ([]*models.Transaction, error)
	ListByAccount(ctx context.Context, db DBTX, accountID uuid.UUID, limit, offset int32) ([]*models.Transaction, error)

	// CountCompletedInPeriod supports the idempotency audit: rerunning a
	// settled period must not grow this count.
	CountCompletedInPeriod(ctx context.Context, db DBTX, start, end time.Time) (int64, error)
}
