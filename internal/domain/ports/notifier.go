package ports

import (
	"context"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// Notifier is the sink for settlement run reports and run-level failures.
// The report fields are the contract; rendering (email, queue message) is the
// adapter's business. Failures travel on a separate alerting path and must
// never be folded into the normal report.
type Notifier interface {
	NotifyReport(ctx context.Context, report *models.RunReport) error
	NotifyFailure(ctx context.Context, job string, err error) error
}
