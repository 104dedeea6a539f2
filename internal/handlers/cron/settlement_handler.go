package cron

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/scheduler"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/settlement"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/timeutil"
)

// SettlementHandler handles cron job endpoints for settlement runs
type SettlementHandler struct {
	engine     *settlement.Engine
	logger     *zap.Logger
	cronSecret string // Secret token for authenticating cron requests
}

// NewSettlementHandler creates a new settlement cron handler
func NewSettlementHandler(engine *settlement.Engine, logger *zap.Logger, cronSecret string) *SettlementHandler {
	return &SettlementHandler{
		engine:     engine,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// RunSettlementRequest represents the request body for a manual settlement run
type RunSettlementRequest struct {
	PeriodStart *string `json:"period_start"` // Optional: ISO date string, defaults to seven days ago
	PeriodEnd   *string `json:"period_end"`   // Optional: ISO date string, defaults to today
}

// RunSettlementResponse represents the response from a settlement run
type RunSettlementResponse struct {
	Success bool              `json:"success"`
	Report  *models.RunReport `json:"report,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// RunSettlement handles the POST /cron/run-settlement endpoint. It is called
// by the external scheduler or an operator to trigger a run for an explicit
// or default period.
func (h *SettlementHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Settlement cron job triggered",
		zap.String("method", r.Method),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RunSettlementRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("Failed to parse request body", zap.Error(err))
			// Continue with defaults if parsing fails
		}
	}

	periodStart, periodEnd := scheduler.WeeklyPeriod(time.Now())
	if req.PeriodStart != nil {
		parsed, err := timeutil.ParseDate("2006-01-02", *req.PeriodStart)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid period_start format: %v", err))
			return
		}
		periodStart = parsed
	}
	if req.PeriodEnd != nil {
		parsed, err := timeutil.ParseDate("2006-01-02", *req.PeriodEnd)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid period_end format: %v", err))
			return
		}
		periodEnd = parsed
	}
	if !periodEnd.After(periodStart) {
		h.respondError(w, http.StatusBadRequest, "period_end must be after period_start")
		return
	}

	report, err := h.engine.RunSettlement(r.Context(), periodStart, periodEnd)
	if err != nil {
		h.logger.Error("Settlement run failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RunSettlementResponse{
		Success: report.FailedPayouts == 0,
		Report:  report,
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Success {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusPartialContent) // 206 indicates partial success
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// authenticateRequest verifies the cron request is authorized
func (h *SettlementHandler) authenticateRequest(r *http.Request) bool {
	// Check X-Cron-Secret header
	cronSecret := r.Header.Get("X-Cron-Secret")
	if cronSecret != "" && cronSecret == h.cronSecret {
		return true
	}

	// Check Authorization header (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if authHeader == "Bearer "+h.cronSecret {
		return true
	}

	// Check query parameter (less secure, for development only)
	querySecret := r.URL.Query().Get("secret")
	if querySecret != "" && querySecret == h.cronSecret {
		h.logger.Warn("Using query parameter authentication (insecure)",
			zap.String("remote_addr", r.RemoteAddr),
		)
		return true
	}

	return false
}

// respondError sends an error response
func (h *SettlementHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := map[string]interface{}{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// HealthCheck handles GET /cron/health for monitoring
func (h *SettlementHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}

	json.NewEncoder(w).Encode(resp)
}

// Stats handles GET /cron/stats for monitoring payout statistics
func (h *SettlementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	counts, err := h.engine.PayoutStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to load payout stats", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	runLimit := int32(5)
	if limitParam := r.URL.Query().Get("runs"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 && parsed <= 50 {
			runLimit = int32(parsed)
		}
	}
	runs, err := h.engine.RecentRuns(r.Context(), runLimit)
	if err != nil {
		h.logger.Warn("Failed to load recent runs", zap.Error(err))
	}

	stats := make(map[string]int64, len(counts))
	for status, count := range counts {
		stats[string(status)] = count
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := map[string]interface{}{
		"success":     true,
		"payouts":     stats,
		"recent_runs": runs,
		"timestamp":   time.Now().Format(time.RFC3339),
	}

	json.NewEncoder(w).Encode(resp)
}
