package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// BookingFeed implements ports.BookingFeed against the marketplace bookings
// table. The eligibility filter mirrors what the booking subsystem promises:
// completed, paid, not yet paid out.
type BookingFeed struct {
	db ports.DBPort
}

// NewBookingFeed creates a new booking feed adapter
func NewBookingFeed(db ports.DBPort) *BookingFeed {
	return &BookingFeed{db: db}
}

// FetchPayableBookings returns eligible bookings completed within [start, end)
func (f *BookingFeed) FetchPayableBookings(ctx context.Context, start, end time.Time) ([]models.PayableBooking, error) {
	rows, err := f.db.GetDB().Query(ctx, `
		SELECT booking_ref, provider_ref, total_amount, completed_at
		FROM bookings
		WHERE status = 'COMPLETED'
		  AND payment_status = 'PAID'
		  AND payout_processed = false
		  AND completed_at >= $1 AND completed_at < $2
		ORDER BY completed_at ASC`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch payable bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.PayableBooking
	for rows.Next() {
		var (
			booking models.PayableBooking
			amount  pgtype.Numeric
		)
		if err := rows.Scan(&booking.BookingRef, &booking.ProviderRef, &amount, &booking.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan payable booking: %w", err)
		}
		if booking.GrossAmount, err = numericToDecimal(amount); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// MarkPayoutProcessed flags a booking as paid out so it drops off the feed
func (f *BookingFeed) MarkPayoutProcessed(ctx context.Context, bookingRef string) error {
	tag, err := f.db.GetDB().Exec(ctx,
		`UPDATE bookings SET payout_processed = true, updated_at = now() WHERE booking_ref = $1`,
		bookingRef)
	if err != nil {
		return fmt.Errorf("mark payout processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark payout processed: booking %s not found", bookingRef)
	}
	return nil
}
