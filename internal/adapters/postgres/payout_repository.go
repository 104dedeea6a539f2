package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// PayoutRepository implements ports.PayoutRepository
type PayoutRepository struct {
	db ports.DBPort
}

// NewPayoutRepository creates a new payout repository
func NewPayoutRepository(db ports.DBPort) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const payoutColumns = `id, booking_ref, provider_ref, gross_amount, platform_fee, provider_amount,
	currency, status, payout_txn_id, fee_txn_id, gateway_payout_id, attempt_count,
	last_attempt_at, failure_reason, reference, created_at, updated_at`

// Create inserts a new payout record. The partial unique index on
// booking_ref (live statuses only) enforces at most one live record per
// booking at the schema level.
func (r *PayoutRepository) Create(ctx context.Context, tx ports.DBTX, record *models.PayoutRecord) error {
	gross, err := decimalToNumeric(record.GrossAmount)
	if err != nil {
		return err
	}
	fee, err := decimalToNumeric(record.PlatformFee)
	if err != nil {
		return err
	}
	providerAmount, err := decimalToNumeric(record.ProviderAmount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO payout_records
			(id, booking_ref, provider_ref, gross_amount, platform_fee, provider_amount,
			 currency, status, payout_txn_id, fee_txn_id, gateway_payout_id, attempt_count,
			 last_attempt_at, failure_reason, reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		record.ID, record.BookingRef, record.ProviderRef, gross, fee, providerAmount,
		record.Currency, string(record.Status), nullUUID(record.PayoutTxnID), nullUUID(record.FeeTxnID),
		nullText(record.GatewayPayoutID), record.AttemptCount, nullTime(record.LastAttemptAt),
		nullText(record.FailureReason), record.Reference, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payout record: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a payout record
func (r *PayoutRepository) Update(ctx context.Context, tx ports.DBTX, record *models.PayoutRecord) error {
	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE payout_records
		SET status = $2, payout_txn_id = $3, fee_txn_id = $4, gateway_payout_id = $5,
			attempt_count = $6, last_attempt_at = $7, failure_reason = $8, updated_at = $9
		WHERE id = $1`,
		record.ID, string(record.Status), nullUUID(record.PayoutTxnID), nullUUID(record.FeeTxnID),
		nullText(record.GatewayPayoutID), record.AttemptCount, nullTime(record.LastAttemptAt),
		nullText(record.FailureReason), record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payout record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPayoutNotFound.WithDetail("payout_id", record.ID.String())
	}
	return nil
}

// GetByID retrieves a payout record by ID
func (r *PayoutRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.PayoutRecord, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payout_records WHERE id = $1`, id)
	return scanPayout(row, id.String())
}

// GetLatestByBookingRef retrieves the most recent payout record for a booking
func (r *PayoutRepository) GetLatestByBookingRef(ctx context.Context, db ports.DBTX, bookingRef string) (*models.PayoutRecord, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payout_records
		 WHERE booking_ref = $1 ORDER BY created_at DESC LIMIT 1`, bookingRef)
	return scanPayout(row, bookingRef)
}

// ListByStatus lists payout records in one status, oldest first so retries
// drain in arrival order
func (r *PayoutRepository) ListByStatus(ctx context.Context, db ports.DBTX, status models.PayoutStatus, limit, offset int32) ([]*models.PayoutRecord, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+payoutColumns+` FROM payout_records
		 WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payouts by status: %w", err)
	}
	defer rows.Close()
	return collectPayouts(rows)
}

// ListByProvider lists a provider's payout records, newest first
func (r *PayoutRepository) ListByProvider(ctx context.Context, db ports.DBTX, providerRef string, limit, offset int32) ([]*models.PayoutRecord, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+payoutColumns+` FROM payout_records
		 WHERE provider_ref = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		providerRef, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payouts by provider: %w", err)
	}
	defer rows.Close()
	return collectPayouts(rows)
}

// CountByStatus returns payout record counts grouped by status
func (r *PayoutRepository) CountByStatus(ctx context.Context, db ports.DBTX) (map[models.PayoutStatus]int64, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT status, count(*) FROM payout_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count payouts by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.PayoutStatus]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan payout count: %w", err)
		}
		counts[models.PayoutStatus(status)] = count
	}
	return counts, rows.Err()
}

func collectPayouts(rows pgx.Rows) ([]*models.PayoutRecord, error) {
	var records []*models.PayoutRecord
	for rows.Next() {
		record, err := scanPayout(rows, "")
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanPayout(row rowScanner, ref string) (*models.PayoutRecord, error) {
	var (
		record          models.PayoutRecord
		gross           pgtype.Numeric
		fee             pgtype.Numeric
		providerAmount  pgtype.Numeric
		status          string
		payoutTxnID     pgtype.UUID
		feeTxnID        pgtype.UUID
		gatewayPayoutID pgtype.Text
		lastAttemptAt   pgtype.Timestamptz
		failureReason   pgtype.Text
	)
	err := row.Scan(&record.ID, &record.BookingRef, &record.ProviderRef,
		&gross, &fee, &providerAmount, &record.Currency, &status,
		&payoutTxnID, &feeTxnID, &gatewayPayoutID, &record.AttemptCount,
		&lastAttemptAt, &failureReason, &record.Reference,
		&record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPayoutNotFound.WithDetail("ref", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("scan payout record: %w", err)
	}

	record.Status = models.PayoutStatus(status)
	record.PayoutTxnID = uuidValue(payoutTxnID)
	record.FeeTxnID = uuidValue(feeTxnID)
	record.GatewayPayoutID = textValue(gatewayPayoutID)
	record.LastAttemptAt = timeValue(lastAttemptAt)
	record.FailureReason = textValue(failureReason)
	if record.GrossAmount, err = numericToDecimal(gross); err != nil {
		return nil, err
	}
	if record.PlatformFee, err = numericToDecimal(fee); err != nil {
		return nil, err
	}
	if record.ProviderAmount, err = numericToDecimal(providerAmount); err != nil {
		return nil, err
	}
	return &record, nil
}
