package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderSummary is the per-provider breakdown inside a run report.
type ProviderSummary struct {
	ProviderRef    string          `json:"provider_ref"`
	BookingCount   int             `json:"booking_count"`
	ProviderAmount decimal.Decimal `json:"provider_amount"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
}

// RunReport is the immutable aggregate produced by one settlement run. It is
// handed to the notification sink and persisted for run history; it is never
// mutated after the run completes.
type RunReport struct {
	ProcessedAt          time.Time         `json:"processed_at"`
	PeriodStart          time.Time         `json:"period_start"`
	PeriodEnd            time.Time         `json:"period_end"`
	TotalBookings        int               `json:"total_bookings"`
	SuccessfulPayouts    int               `json:"successful_payouts"`
	FailedPayouts        int               `json:"failed_payouts"`
	SkippedBookings      int               `json:"skipped_bookings"`
	TotalProcessedAmount decimal.Decimal   `json:"total_processed_amount"`
	TotalProviderPayouts decimal.Decimal   `json:"total_provider_payouts"`
	TotalPlatformFees    decimal.Decimal   `json:"total_platform_fees"`
	ProviderSummaries    []ProviderSummary `json:"provider_summaries"`
}
