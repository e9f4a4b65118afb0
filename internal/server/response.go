package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"referral-rewards-go/internal/store"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps the store's sentinel errors onto HTTP statuses.
// Wallet-operation failures must surface a specific, actionable reason.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidCode),
		errors.Is(err, store.ErrSelfReferral):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAlreadyReferred),
		errors.Is(err, store.ErrAlreadyClaimed),
		errors.Is(err, store.ErrAlreadyFinalized),
		errors.Is(err, store.ErrDuplicateReward),
		errors.Is(err, store.ErrRewardExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zap.L().Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
