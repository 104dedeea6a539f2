package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// RunReportRepository implements ports.RunReportRepository, storing each run
// report as a jsonb document keyed by its period.
type RunReportRepository struct {
	db ports.DBPort
}

// NewRunReportRepository creates a new run report repository
func NewRunReportRepository(db ports.DBPort) *RunReportRepository {
	return &RunReportRepository{db: db}
}

func (r *RunReportRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// Create persists one settlement run report
func (r *RunReportRepository) Create(ctx context.Context, tx ports.DBTX, report *models.RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO settlement_runs (id, period_start, period_end, report, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), report.PeriodStart, report.PeriodEnd, body, report.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("create settlement run: %w", err)
	}
	return nil
}

// ListRecent returns the most recent run reports, newest first
func (r *RunReportRepository) ListRecent(ctx context.Context, db ports.DBTX, limit int32) ([]*models.RunReport, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT report FROM settlement_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list settlement runs: %w", err)
	}
	defer rows.Close()

	var reports []*models.RunReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan settlement run: %w", err)
		}
		var report models.RunReport
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, fmt.Errorf("unmarshal run report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}
