package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus is the payload served on the health endpoint.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker reports process liveness plus database reachability.
type HealthChecker struct {
	dbPool *pgxpool.Pool
}

// NewHealthChecker creates a health checker. dbPool may be nil to skip the
// database probe.
func NewHealthChecker(dbPool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{dbPool: dbPool}
}

// Check runs all probes and aggregates the result.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string)
	status := "healthy"

	if h.dbPool != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.dbPool.Ping(dbCtx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
}

// Handler serves the health status as JSON, 503 when any probe fails.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if result.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(result)
	}
}
