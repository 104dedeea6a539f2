package ports

import (
	"context"
	"time"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// BookingFeed is the upstream contract of the booking subsystem. The feed is
// filtered upstream to completed, paid bookings not yet paid out; the
// settlement engine treats it as read-only apart from the processed flag.
type BookingFeed interface {
	// FetchPayableBookings returns eligible bookings whose completion time
	// falls within [start, end).
	FetchPayableBookings(ctx context.Context, start, end time.Time) ([]models.PayableBooking, error)

	// MarkPayoutProcessed flags a booking once its payout record reaches
	// PROCESSED, removing it from future feeds.
	MarkPayoutProcessed(ctx context.Context, bookingRef string) error
}
