package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"referral-rewards-go/internal/auth"
	"referral-rewards-go/internal/engine"
	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/referral"
	"referral-rewards-go/internal/wallet"

	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 50

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// ProcessHandler receives the payment-confirmation signal from the subsystem
// that finalizes a qualifying paid action. The triggering action is already
// durably committed, so this endpoint always answers 200 with a
// ProcessResult the caller can branch on.
func ProcessHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var action models.Action
		if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if action.UserId == "" || action.TransactionId == "" || action.ActionType == "" {
			writeError(w, http.StatusBadRequest, "user_id, action_type and transaction_id are required")
			return
		}

		result := eng.Process(r.Context(), action)
		writeJSON(w, http.StatusOK, result)
	}
}

// ClaimHandler converts a pending reward into spendable wallet balance for
// the authenticated caller.
func ClaimHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		rewardId := chi.URLParam(r, "rewardID")
		entry, err := eng.Claim(r.Context(), rewardId, identity.UserId, identity.IsAdmin)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// RewardsHandler lists the caller's rewards.
func RewardsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		limit, offset := pagination(r)
		rewards, err := eng.Rewards(r.Context(), identity.UserId, limit, offset)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rewards": rewards})
	}
}

// BalanceHandler returns the caller's derived wallet balance.
func BalanceHandler(ledger *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		balance, err := ledger.CurrentBalance(r.Context(), identity.UserId)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": identity.UserId, "balance": balance})
	}
}

// EntriesHandler returns a page of the caller's wallet ledger, newest first.
func EntriesHandler(ledger *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		limit, offset := pagination(r)
		entries, err := ledger.Entries(r.Context(), identity.UserId, limit, offset)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

// RedeemReferralHandler redeems a referral code for the authenticated caller,
// creating their (single, lifetime) referral.
func RedeemReferralHandler(registry *referral.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}

		created, err := registry.Create(r.Context(), body.Code, identity.UserId)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// RegisterCodeHandler assigns the caller's own referral code.
func RegisterCodeHandler(registry *referral.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}

		if err := registry.RegisterCode(r.Context(), identity.UserId, body.Code); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"user_id": identity.UserId, "code": body.Code})
	}
}
