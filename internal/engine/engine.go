// Package engine orchestrates reward issuance: given a completed qualifying
// action, it looks up the referral, selects valid rules, computes payouts and
// records rewards, each at most once per (referral, rule, transaction).
package engine

import (
	"context"
	"errors"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/referral"
	"referral-rewards-go/internal/rules"
	"referral-rewards-go/internal/store"

	"go.uber.org/zap"
)

type Engine struct {
	store     store.Store
	referrals *referral.Registry
	now       func() time.Time
}

func New(st store.Store, referrals *referral.Registry) *Engine {
	return &Engine{
		store:     st,
		referrals: referrals,
		now:       time.Now,
	}
}

// Process evaluates all reward rules against one completed qualifying action.
// It never fails the caller: the triggering action is already durably
// committed when Process runs, so internal errors are logged and downgraded
// to an unapplied result rather than propagated.
func (e *Engine) Process(ctx context.Context, action models.Action) models.ProcessResult {
	result, err := e.process(ctx, action)
	if err != nil {
		zap.L().Error("Reward processing failed",
			zap.String("user_id", action.UserId),
			zap.String("action_type", string(action.ActionType)),
			zap.String("transaction_id", action.TransactionId),
			zap.Error(err))
		return models.ProcessResult{Applied: false, Reason: models.SkipInternalError}
	}
	return result
}

func (e *Engine) process(ctx context.Context, action models.Action) (models.ProcessResult, error) {
	ref, err := e.referrals.LookupActive(ctx, action.UserId)
	if err != nil {
		return models.ProcessResult{}, err
	}
	if ref == nil {
		return models.ProcessResult{Applied: false, Reason: models.SkipNoReferral}, nil
	}

	// Completion is about the action occurring, not about any reward firing.
	if ref.Status == models.ReferralPending {
		if err := e.referrals.MarkCompleted(ctx, ref.Id); err != nil {
			return models.ProcessResult{}, err
		}
	}

	slug := ""
	if action.ActionType == models.ActionDynamicServices {
		slug = action.ServiceSlug
	}
	candidates, err := e.store.MatchRules(ctx, action.ActionType, slug)
	if err != nil {
		return models.ProcessResult{}, err
	}

	now := e.now()
	var totals rules.RewardSplit
	duplicates := 0

	// Rules are independent; every applicable rule fires, in store order.
	for _, rule := range candidates {
		if !rules.IsValid(rule, now) {
			continue
		}
		split := rules.CalculateReward(rule, action.Amount)
		if split.IsZero() {
			continue
		}

		_, err := e.store.IssueReward(ctx, store.IssueRewardParams{
			ReferralId:     ref.Id,
			RuleId:         rule.Id,
			TransactionId:  action.TransactionId,
			ReferrerId:     ref.ReferrerId,
			RefereeId:      ref.RefereeId,
			ReferrerAmount: split.Referrer,
			RefereeAmount:  split.Referee,
			MaxUsesPerUser: rule.MaxUsesPerUser,
		})
		switch {
		case errors.Is(err, store.ErrDuplicateReward):
			duplicates++
			continue
		case errors.Is(err, store.ErrUsageCapReached):
			continue
		case err != nil:
			return models.ProcessResult{}, err
		}

		totals.Referrer += split.Referrer
		totals.Referee += split.Referee
	}

	if totals.Total() == 0 && duplicates > 0 {
		return models.ProcessResult{Applied: false, Reason: models.SkipAlreadyApplied}, nil
	}

	if totals.Total() > 0 {
		zap.L().Info("Rewards applied",
			zap.String("referral_id", ref.Id),
			zap.String("transaction_id", action.TransactionId),
			zap.Int64("referrer_total", totals.Referrer),
			zap.Int64("referee_total", totals.Referee))
	}

	return models.ProcessResult{
		Applied:        true,
		ReferrerReward: totals.Referrer,
		RefereeReward:  totals.Referee,
	}, nil
}
