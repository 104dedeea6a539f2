package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/ledger"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/settlement"
)

// NewRouter mounts the operator API. Every route requires the shared admin
// secret; this surface is for internal tooling, not end users.
func NewRouter(engine *settlement.Engine, ledgerSvc *ledger.Service, adminSecret string, logger *zap.Logger) chi.Router {
	payouts := NewPayoutHandler(engine, logger)
	accounts := NewAccountHandler(ledgerSvc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requireSecret(adminSecret, logger))

	r.Route("/payouts", func(r chi.Router) {
		r.Get("/", payouts.List)
		r.Get("/stats", payouts.Stats)
		r.Get("/{payoutID}", payouts.Get)
		r.Post("/{payoutID}/retry", payouts.Retry)
		r.Post("/{payoutID}/reverse", payouts.Reverse)
		r.Post("/{payoutID}/cancel", payouts.Cancel)
	})
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", accounts.List)
		r.Get("/{accountID}", accounts.Get)
		r.Get("/{accountID}/transactions", accounts.Transactions)
		r.Post("/{accountID}/deactivate", accounts.Deactivate)
		r.Post("/{accountID}/reactivate", accounts.Reactivate)
	})
	r.Post("/settlement/run", payouts.RunSettlement)
	r.Get("/settlement/runs", payouts.RecentRuns)

	return r
}

// requireSecret rejects requests without the shared admin secret. An empty
// configured secret disables the surface entirely rather than leaving it open.
func requireSecret(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"success": false,
					"error":   "admin API is not configured",
				}, logger)
				return
			}
			provided := r.Header.Get("X-Admin-Secret")
			if provided == "" {
				if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
					provided = auth[7:]
				}
			}
			if provided != secret {
				logger.Warn("Unauthorized admin request",
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("path", r.URL.Path),
				)
				respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"error":   "unauthorized",
				}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
