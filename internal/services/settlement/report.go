package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// providerOutcome is what one provider group's processing folds down to.
// Workers produce these; the single-threaded fold at the end of the run turns
// them into the immutable report.
type providerOutcome struct {
	summary         models.ProviderSummary
	successful      int
	failed          int
	skipped         int
	processedAmount decimal.Decimal
}

// reportBuilder accumulates one run's totals. It is scoped to a single run
// and only touched by the fold goroutine, then discarded after Build.
type reportBuilder struct {
	periodStart          time.Time
	periodEnd            time.Time
	totalBookings        int
	successful           int
	failed               int
	skipped              int
	totalProcessedAmount decimal.Decimal
	totalProviderPayouts decimal.Decimal
	totalPlatformFees    decimal.Decimal
	summaries            []models.ProviderSummary
}

func newReportBuilder(periodStart, periodEnd time.Time, totalBookings int) *reportBuilder {
	return &reportBuilder{
		periodStart:          periodStart,
		periodEnd:            periodEnd,
		totalBookings:        totalBookings,
		totalProcessedAmount: decimal.Zero,
		totalProviderPayouts: decimal.Zero,
		totalPlatformFees:    decimal.Zero,
	}
}

func (b *reportBuilder) fold(outcome providerOutcome) {
	b.successful += outcome.successful
	b.failed += outcome.failed
	b.skipped += outcome.skipped
	b.totalProcessedAmount = b.totalProcessedAmount.Add(outcome.processedAmount)
	b.totalProviderPayouts = b.totalProviderPayouts.Add(outcome.summary.ProviderAmount)
	b.totalPlatformFees = b.totalPlatformFees.Add(outcome.summary.FeeAmount)
	if outcome.summary.BookingCount > 0 {
		b.summaries = append(b.summaries, outcome.summary)
	}
}

func (b *reportBuilder) build() *models.RunReport {
	// Deterministic ordering regardless of worker completion order.
	sort.Slice(b.summaries, func(i, j int) bool {
		return b.summaries[i].ProviderRef < b.summaries[j].ProviderRef
	})
	return &models.RunReport{
		ProcessedAt:          time.Now().UTC(),
		PeriodStart:          b.periodStart,
		PeriodEnd:            b.periodEnd,
		TotalBookings:        b.totalBookings,
		SuccessfulPayouts:    b.successful,
		FailedPayouts:        b.failed,
		SkippedBookings:      b.skipped,
		TotalProcessedAmount: b.totalProcessedAmount,
		TotalProviderPayouts: b.totalProviderPayouts,
		TotalPlatformFees:    b.totalPlatformFees,
		ProviderSummaries:    b.summaries,
	}
}
