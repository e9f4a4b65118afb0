package server

import (
	"net/http"

	"referral-rewards-go/internal/auth"
	"referral-rewards-go/internal/engine"
	"referral-rewards-go/internal/referral"
	"referral-rewards-go/internal/store"
	"referral-rewards-go/internal/wallet"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps carries the services the HTTP surface is built from.
type Deps struct {
	Store    store.Store
	Ledger   *wallet.Service
	Registry *referral.Registry
	Engine   *engine.Engine
	Verifier *auth.Verifier
}

func New(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.Verifier.Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Post("/rewards/process", ProcessHandler(deps.Engine))
			r.Post("/rewards/{rewardID}/claim", ClaimHandler(deps.Engine))
			r.Get("/rewards", RewardsHandler(deps.Engine))

			r.Get("/wallet/balance", BalanceHandler(deps.Ledger))
			r.Get("/wallet/entries", EntriesHandler(deps.Ledger))

			r.Post("/referrals", RedeemReferralHandler(deps.Registry))
			r.Post("/referrals/code", RegisterCodeHandler(deps.Registry))

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Post("/rules", CreateRuleHandler(deps.Store))
				r.Get("/rules", ListRulesHandler(deps.Store))
				r.Put("/rules/{ruleID}", UpdateRuleHandler(deps.Store))
				r.Post("/rules/{ruleID}/deactivate", DeactivateRuleHandler(deps.Store))

				r.Get("/referrals", ListReferralsHandler(deps.Registry))
				r.Put("/referrals/{referralID}/status", OverrideReferralStatusHandler(deps.Registry))

				r.Put("/rewards/{rewardID}/status", ForceRewardStatusHandler(deps.Store))
				r.Put("/wallet/entries/{entryID}/finalize", VerifyEntryHandler(deps.Ledger))
			})
		})
	})

	return r
}
