package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
)

// PayoutStatus represents the state of a payout record
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutProcessed  PayoutStatus = "PROCESSED"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
	PayoutReversed   PayoutStatus = "REVERSED"
)

// PayoutRecord is the settlement unit for a single completed, payable
// booking. The booking reference doubles as the idempotency key: at most one
// live (PENDING, PROCESSING or PROCESSED) record exists per booking.
//
// State machine:
//
//	PENDING → PROCESSING → PROCESSED
//	PROCESSING → FAILED → PROCESSING (while attempts remain)
//	PENDING | PROCESSING | FAILED → CANCELLED
//	PROCESSED → REVERSED
type PayoutRecord struct {
	ID              uuid.UUID
	BookingRef      string
	ProviderRef     string
	GrossAmount     decimal.Decimal
	PlatformFee     decimal.Decimal
	ProviderAmount  decimal.Decimal
	Currency        string
	Status          PayoutStatus
	PayoutTxnID     *uuid.UUID
	FeeTxnID        *uuid.UUID
	GatewayPayoutID string
	AttemptCount    int
	LastAttemptAt   *time.Time
	FailureReason   string
	Reference       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPayoutRecord creates a PENDING payout record for a payable booking.
// Fee and provider amounts must already be computed; the record only captures
// them.
func NewPayoutRecord(booking PayableBooking, fee, providerAmount decimal.Decimal, currency string) *PayoutRecord {
	now := time.Now().UTC()
	return &PayoutRecord{
		ID:             uuid.New(),
		BookingRef:     booking.BookingRef,
		ProviderRef:    booking.ProviderRef,
		GrossAmount:    booking.GrossAmount,
		PlatformFee:    fee,
		ProviderAmount: providerAmount,
		Currency:       currency,
		Status:         PayoutPending,
		Reference:      fmt.Sprintf("PAYOUT-%s", uuid.NewString()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsLive reports whether the record blocks creation of another record for the
// same booking.
func (p *PayoutRecord) IsLive() bool {
	switch p.Status {
	case PayoutPending, PayoutProcessing, PayoutProcessed:
		return true
	}
	return false
}

// IsTerminal reports whether no further settlement work applies.
func (p *PayoutRecord) IsTerminal() bool {
	switch p.Status {
	case PayoutProcessed, PayoutCancelled, PayoutReversed:
		return true
	}
	return false
}

// CanRetry reports whether a failed record may be retried.
func (p *PayoutRecord) CanRetry(maxAttempts int) bool {
	return p.Status == PayoutFailed && p.AttemptCount < maxAttempts
}

// MarkProcessing transitions the record into PROCESSING, counting the
// attempt. Only PENDING and retryable FAILED records may enter PROCESSING.
func (p *PayoutRecord) MarkProcessing(maxAttempts int) error {
	switch p.Status {
	case PayoutPending:
	case PayoutFailed:
		if p.AttemptCount >= maxAttempts {
			return domain.ErrPayoutRetryExhausted.WithDetail("booking_ref", p.BookingRef)
		}
	default:
		return domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
			fmt.Sprintf("cannot start processing payout in state %s", p.Status))
	}
	now := time.Now().UTC()
	p.Status = PayoutProcessing
	p.AttemptCount++
	p.LastAttemptAt = &now
	p.FailureReason = ""
	p.UpdatedAt = now
	return nil
}

// MarkProcessed transitions PROCESSING → PROCESSED, recording the completed
// ledger transactions. A nil transaction ID is only acceptable for a leg
// whose amount is zero (nothing was transferred).
func (p *PayoutRecord) MarkProcessed(payoutTxnID, feeTxnID *uuid.UUID) error {
	if p.Status != PayoutProcessing {
		return domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
			fmt.Sprintf("cannot mark payout processed in state %s", p.Status))
	}
	if payoutTxnID == nil && p.ProviderAmount.IsPositive() {
		return domain.ErrPayoutInvalidState.WithDetail("reason", "missing provider transaction")
	}
	if feeTxnID == nil && p.PlatformFee.IsPositive() {
		return domain.ErrPayoutInvalidState.WithDetail("reason", "missing fee transaction")
	}
	p.Status = PayoutProcessed
	p.PayoutTxnID = payoutTxnID
	p.FeeTxnID = feeTxnID
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed transitions PROCESSING → FAILED with a human-readable reason.
// The attempt was already counted on entering PROCESSING.
func (p *PayoutRecord) MarkFailed(reason string) error {
	if p.Status != PayoutProcessing {
		return domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
			fmt.Sprintf("cannot mark payout failed in state %s", p.Status))
	}
	p.Status = PayoutFailed
	p.FailureReason = reason
	p.PayoutTxnID = nil
	p.FeeTxnID = nil
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions any unfinished record to CANCELLED, used when the
// booking is reversed upstream.
func (p *PayoutRecord) Cancel() error {
	switch p.Status {
	case PayoutPending, PayoutProcessing, PayoutFailed:
		p.Status = PayoutCancelled
		p.UpdatedAt = time.Now().UTC()
		return nil
	}
	return domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
		fmt.Sprintf("cannot cancel payout in state %s", p.Status))
}

// MarkReversed transitions PROCESSED → REVERSED after compensating
// transactions have been recorded.
func (p *PayoutRecord) MarkReversed(reason string) error {
	if p.Status != PayoutProcessed {
		return domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
			fmt.Sprintf("cannot reverse payout in state %s", p.Status))
	}
	p.Status = PayoutReversed
	p.FailureReason = reason
	p.UpdatedAt = time.Now().UTC()
	return nil
}
