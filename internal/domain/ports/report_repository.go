package ports

import (
	"context"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
)

// RunReportRepository persists settlement run history. Reports are written
// once per run and only ever read back, newest first.
type RunReportRepository interface {
	Create(ctx context.Context, tx DBTX, report *models.RunReport) error
	ListRecent(ctx context.Context, db DBTX, limit int32) ([]*models.RunReport, error)
}
