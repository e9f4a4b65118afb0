package server

import (
	"encoding/json"
	"net/http"
	"time"

	"referral-rewards-go/internal/auth"
	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/referral"
	"referral-rewards-go/internal/store"
	"referral-rewards-go/internal/wallet"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ruleRequest is the admin API shape of a reward rule.
type ruleRequest struct {
	Name                 string `json:"name"`
	ActionType           string `json:"action_type"`
	ServiceSlug          string `json:"service_slug"`
	Recipient            string `json:"recipient"`
	RewardType           string `json:"reward_type"`
	RewardAmount         int64  `json:"reward_amount"`
	PercentageRate       string `json:"percentage_rate"`
	ReferrerRewardAmount int64  `json:"referrer_reward_amount"`
	RefereeRewardAmount  int64  `json:"referee_reward_amount"`
	MinAmount            int64  `json:"min_amount"`
	MaxUsesPerUser       int64  `json:"max_uses_per_user"`
	MaxTotalUses         int64  `json:"max_total_uses"`
	ValidFrom            string `json:"valid_from"`
	ValidUntil           string `json:"valid_until"`
	IsActive             *bool  `json:"is_active"`
}

func (req ruleRequest) toRule() (*models.RewardRule, error) {
	rule := &models.RewardRule{
		Name:                 req.Name,
		ActionType:           models.ActionType(req.ActionType),
		ServiceSlug:          req.ServiceSlug,
		Recipient:            models.RewardRecipient(req.Recipient),
		RewardType:           models.RewardType(req.RewardType),
		RewardAmount:         req.RewardAmount,
		ReferrerRewardAmount: req.ReferrerRewardAmount,
		RefereeRewardAmount:  req.RefereeRewardAmount,
		MinAmount:            req.MinAmount,
		MaxUsesPerUser:       req.MaxUsesPerUser,
		MaxTotalUses:         req.MaxTotalUses,
		IsActive:             true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.PercentageRate != "" {
		rate, err := decimal.NewFromString(req.PercentageRate)
		if err != nil {
			return nil, err
		}
		rule.PercentageRate = rate
	}
	if req.ValidFrom != "" {
		t, err := time.Parse(time.RFC3339, req.ValidFrom)
		if err != nil {
			return nil, err
		}
		rule.ValidFrom = &t
	}
	if req.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339, req.ValidUntil)
		if err != nil {
			return nil, err
		}
		rule.ValidUntil = &t
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func CreateRuleHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rule, err := req.toRule()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := st.CreateRule(r.Context(), rule); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	}
}

func UpdateRuleHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rule, err := req.toRule()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rule.Id = chi.URLParam(r, "ruleID")
		if err := st.UpdateRule(r.Context(), rule); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func DeactivateRuleHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeactivateRule(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	}
}

func ListRulesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := st.ListRules(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	}
}

func ListReferralsHandler(registry *referral.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		referrals, err := registry.List(r.Context(), limit, offset)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"referrals": referrals})
	}
}

func OverrideReferralStatusHandler(registry *referral.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}

		referralId := chi.URLParam(r, "referralID")
		if err := registry.OverrideStatus(r.Context(), referralId, models.ReferralStatus(body.Status)); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"referral_id": referralId, "status": body.Status})
	}
}

func ForceRewardStatusHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}

		rewardId := chi.URLParam(r, "rewardID")
		if err := st.SetRewardStatus(r.Context(), rewardId, models.RewardStatus(body.Status)); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reward_id": rewardId, "status": body.Status})
	}
}

// VerifyEntryHandler finalizes a pending wallet entry (verify or reject) and
// refreshes the owner's balance snapshot.
func VerifyEntryHandler(ledger *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}

		entryId := chi.URLParam(r, "entryID")
		var entry *models.WalletEntry
		switch models.EntryStatus(body.Status) {
		case models.EntryVerified:
			entry, err = ledger.Verify(r.Context(), entryId, identity.UserId)
		case models.EntryRejected:
			entry, err = ledger.Reject(r.Context(), entryId, identity.UserId)
		default:
			writeError(w, http.StatusBadRequest, "status must be verified or rejected")
			return
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}

		if _, err := ledger.AppendSnapshot(r.Context(), entry.OwnerId); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}
