package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayableBooking is one item of the upstream booking feed: a completed, paid
// booking that has not yet been paid out. The feed is filtered upstream; the
// settlement engine only re-checks its own payout records.
type PayableBooking struct {
	BookingRef  string
	ProviderRef string
	GrossAmount decimal.Decimal
	CompletedAt time.Time
}
