package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/settlement"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/timeutil"
)

// PayoutHandler exposes payout records and manual settlement operations to
// operators.
type PayoutHandler struct {
	engine *settlement.Engine
	logger *zap.Logger
}

// NewPayoutHandler creates a new payout admin handler
func NewPayoutHandler(engine *settlement.Engine, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{engine: engine, logger: logger}
}

// List handles GET /payouts?status=FAILED&limit=50&offset=0
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.PayoutStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.PayoutFailed
	}
	limit, offset := pagination(r)

	records, err := h.engine.ListPayouts(r.Context(), status, limit, offset)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payouts": records,
		"count":   len(records),
	}, h.logger)
}

// Get handles GET /payouts/{payoutID}
func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.payoutID(w, r)
	if !ok {
		return
	}
	record, err := h.engine.GetPayout(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payout":  record,
	}, h.logger)
}

// Retry handles POST /payouts/{payoutID}/retry for FAILED records
func (h *PayoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.payoutID(w, r)
	if !ok {
		return
	}
	record, err := h.engine.RetryPayout(r.Context(), id)
	if err != nil {
		h.logger.Warn("Manual payout retry failed",
			zap.String("payout_id", id.String()),
			zap.Error(err))
		h.respondDomainError(w, err)
		return
	}
	h.logger.Info("Manual payout retry succeeded", zap.String("payout_id", id.String()))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payout":  record,
	}, h.logger)
}

// ReversePayoutRequest carries the mandatory reason for a manual reversal
type ReversePayoutRequest struct {
	Reason string `json:"reason"`
}

// Reverse handles POST /payouts/{payoutID}/reverse for PROCESSED records
func (h *PayoutHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.payoutID(w, r)
	if !ok {
		return
	}
	var req ReversePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "a non-empty reason is required",
		}, h.logger)
		return
	}
	record, err := h.engine.ReversePayout(r.Context(), id, req.Reason)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.logger.Info("Payout reversed",
		zap.String("payout_id", id.String()),
		zap.String("reason", req.Reason))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payout":  record,
	}, h.logger)
}

// Cancel handles POST /payouts/{payoutID}/cancel for unfinished records
func (h *PayoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.payoutID(w, r)
	if !ok {
		return
	}
	record, err := h.engine.CancelPayout(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payout":  record,
	}, h.logger)
}

// Stats handles GET /payouts/stats
func (h *PayoutHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.engine.PayoutStats(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	stats := make(map[string]int64, len(counts))
	for status, count := range counts {
		stats[string(status)] = count
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	}, h.logger)
}

// RunSettlementRequest selects the period for a manual run
type RunSettlementRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// RunSettlement handles POST /settlement/run with an explicit period
func (h *PayoutHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var req RunSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid request body",
		}, h.logger)
		return
	}
	start, err := timeutil.ParseDate("2006-01-02", req.PeriodStart)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("invalid period_start: %v", err),
		}, h.logger)
		return
	}
	end, err := timeutil.ParseDate("2006-01-02", req.PeriodEnd)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("invalid period_end: %v", err),
		}, h.logger)
		return
	}
	if !end.After(start) {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "period_end must be after period_start",
		}, h.logger)
		return
	}

	report, err := h.engine.RunSettlement(r.Context(), start, end)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	}, h.logger)
}

// RecentRuns handles GET /settlement/runs?limit=10
func (h *PayoutHandler) RecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := int32(10)
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 && parsed <= 100 {
			limit = int32(parsed)
		}
	}
	runs, err := h.engine.RecentRuns(r.Context(), limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"runs":    runs,
	}, h.logger)
}

func (h *PayoutHandler) payoutID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid payout ID",
		}, h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *PayoutHandler) respondDomainError(w http.ResponseWriter, err error) {
	respondJSON(w, statusForError(err), map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"code":    string(domain.GetErrorCode(err)),
	}, h.logger)
}

// statusForError maps domain error codes onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.GetErrorCode(err) == domain.ErrorCodePayoutInvalidState,
		domain.GetErrorCode(err) == domain.ErrorCodePayoutAlreadyProcessed,
		domain.GetErrorCode(err) == domain.ErrorCodePayoutRetryExhausted,
		domain.GetErrorCode(err) == domain.ErrorCodeSettlementRunInProgress:
		return http.StatusConflict
	case domain.IsConfigurationError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pagination(r *http.Request) (limit, offset int32) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = int32(parsed)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = int32(parsed)
		}
	}
	return limit, offset
}
