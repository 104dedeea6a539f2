package rabbitmq

import (
	"context"

	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// LogNotifier is the fallback notifier used when no broker is configured. It
// writes reports and alerts to the service log so nothing is silently lost.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyReport(_ context.Context, report *models.RunReport) error {
	n.logger.Info("settlement run report",
		zap.Time("period_start", report.PeriodStart),
		zap.Time("period_end", report.PeriodEnd),
		zap.Int("total_bookings", report.TotalBookings),
		zap.Int("successful", report.SuccessfulPayouts),
		zap.Int("failed", report.FailedPayouts),
		zap.Int("skipped", report.SkippedBookings),
		zap.String("total_processed", report.TotalProcessedAmount.String()),
		zap.String("provider_payouts", report.TotalProviderPayouts.String()),
		zap.String("platform_fees", report.TotalPlatformFees.String()),
	)
	return nil
}

func (n *LogNotifier) NotifyFailure(_ context.Context, job string, runErr error) error {
	n.logger.Error("settlement job failure",
		zap.String("job", job),
		zap.Error(runErr),
	)
	return nil
}
