package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/ledger"
)

// AccountHandler exposes ledger accounts and their transaction history to
// operators.
type AccountHandler struct {
	ledger *ledger.Service
	logger *zap.Logger
}

// NewAccountHandler creates a new account admin handler
func NewAccountHandler(ledgerSvc *ledger.Service, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{ledger: ledgerSvc, logger: logger}
}

// List handles GET /accounts?kind=PROVIDER&limit=50&offset=0
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := models.AccountKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.AccountProvider
	}
	limit, offset := pagination(r)

	accounts, err := h.ledger.ListAccounts(r.Context(), kind, limit, offset)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"accounts": accounts,
		"count":    len(accounts),
	}, h.logger)
}

// Get handles GET /accounts/{accountID}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"account": account,
	}, h.logger)
}

// Transactions handles GET /accounts/{accountID}/transactions
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	txns, err := h.ledger.ListAccountTransactions(r.Context(), id, limit, offset)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": txns,
		"count":        len(txns),
	}, h.logger)
}

// Deactivate handles POST /accounts/{accountID}/deactivate. A deactivated
// account rejects further transfers until reactivated.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Reactivate handles POST /accounts/{accountID}/reactivate
func (h *AccountHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AccountHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var err error
	if active {
		err = h.ledger.ReactivateAccount(r.Context(), id)
	} else {
		err = h.ledger.DeactivateAccount(r.Context(), id)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.logger.Info("Account active flag changed",
		zap.String("account_id", id.String()),
		zap.Bool("active", active))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	}, h.logger)
}

func (h *AccountHandler) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid account ID",
		}, h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *AccountHandler) respondDomainError(w http.ResponseWriter, err error) {
	respondJSON(w, statusForError(err), map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"code":    string(domain.GetErrorCode(err)),
	}, h.logger)
}
