package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// PayoutRepository defines persistence for payout records. Records are never
// deleted; terminal records stay for audit and manual remediation.
type PayoutRepository interface {
	Create(ctx context.Context, tx DBTX, record *models.PayoutRecord) error

	// Update persists the mutable fields of a record: status, linked
	// transactions, attempt bookkeeping and failure reason.
	Update(ctx context.Context, tx DBTX, record *models.PayoutRecord) error

	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.PayoutRecord, error)

	// GetLatestByBookingRef returns the most recent record for a booking,
	// regardless of status. The settlement engine uses it as the idempotency
	// check before creating a new record.
	GetLatestByBookingRef(ctx context.Context, db DBTX, bookingRef string) (*models.PayoutRecord, error)

	ListByStatus(ctx context.Context, db DBTX, status models.PayoutStatus, limit, offset int32) ([]*models.PayoutRecord, error)
	ListByProvider(ctx context.Context, db DBTX, providerRef string, limit, offset int32) ([]*models.PayoutRecord, error)

	// CountByStatus returns record counts per status for the stats surface.
	CountByStatus(ctx context.Context, db DBTX) (map[models.PayoutStatus]int64, error)
}
