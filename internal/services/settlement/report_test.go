package settlement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

func d(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func TestReportBuilder_FoldsOutcomes(t *testing.T) {
	start := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	b := newReportBuilder(start, end, 5)

	b.fold(providerOutcome{
		summary: models.ProviderSummary{
			ProviderRef:    "therapist-z",
			BookingCount:   2,
			ProviderAmount: d("176.00"),
			FeeAmount:      d("24.00"),
		},
		successful:      2,
		processedAmount: d("200.00"),
	})
	b.fold(providerOutcome{
		summary: models.ProviderSummary{
			ProviderRef:    "therapist-a",
			BookingCount:   1,
			ProviderAmount: d("396.00"),
			FeeAmount:      d("54.00"),
		},
		successful:      1,
		failed:          1,
		processedAmount: d("450.00"),
	})
	b.fold(providerOutcome{
		summary: models.ProviderSummary{ProviderRef: "therapist-m", ProviderAmount: decimal.Zero, FeeAmount: decimal.Zero},
		skipped: 1,
	})

	report := b.build()

	assert.Equal(t, start, report.PeriodStart)
	assert.Equal(t, end, report.PeriodEnd)
	assert.Equal(t, 5, report.TotalBookings)
	assert.Equal(t, 3, report.SuccessfulPayouts)
	assert.Equal(t, 1, report.FailedPayouts)
	assert.Equal(t, 1, report.SkippedBookings)
	assert.True(t, report.TotalProcessedAmount.Equal(d("650.00")))
	assert.True(t, report.TotalProviderPayouts.Equal(d("572.00")))
	assert.True(t, report.TotalPlatformFees.Equal(d("78.00")))
	assert.False(t, report.ProcessedAt.IsZero())
}

// Summaries come back sorted by provider reference even though workers finish
// in arbitrary order, and providers with no successful bookings are omitted.
func TestReportBuilder_SummaryOrderingAndFiltering(t *testing.T) {
	b := newReportBuilder(time.Now(), time.Now().Add(time.Hour), 3)

	for _, ref := range []string{"zulu", "alpha", "mike"} {
		b.fold(providerOutcome{
			summary: models.ProviderSummary{
				ProviderRef:    ref,
				BookingCount:   1,
				ProviderAmount: d("88.00"),
				FeeAmount:      d("12.00"),
			},
			successful:      1,
			processedAmount: d("100.00"),
		})
	}
	b.fold(providerOutcome{
		summary: models.ProviderSummary{ProviderRef: "bravo", ProviderAmount: decimal.Zero, FeeAmount: decimal.Zero},
		failed:  1,
	})

	report := b.build()

	refs := make([]string, len(report.ProviderSummaries))
	for i, s := range report.ProviderSummaries {
		refs[i] = s.ProviderRef
	}
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, refs)
}

func TestReportBuilder_EmptyRun(t *testing.T) {
	b := newReportBuilder(time.Now(), time.Now().Add(time.Hour), 0)
	report := b.build()

	assert.Equal(t, 0, report.TotalBookings)
	assert.Equal(t, 0, report.SuccessfulPayouts)
	assert.True(t, report.TotalProcessedAmount.IsZero())
	assert.Empty(t, report.ProviderSummaries)
}
