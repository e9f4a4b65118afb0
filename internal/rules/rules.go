// Package rules holds the pure evaluation half of the rule store: matching,
// validity and reward computation have no side effects and no clock of their
// own, which is what makes the reward engine's decisions testable.
package rules

import (
	"time"

	"referral-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

// RewardSplit is the computed payout of one rule firing.
type RewardSplit struct {
	Referrer int64
	Referee  int64
}

// IsZero reports whether the rule produced no payout, i.e. it does not apply.
func (s RewardSplit) IsZero() bool {
	return s.Referrer == 0 && s.Referee == 0
}

// Total is the combined payout across both parties.
func (s RewardSplit) Total() int64 {
	return s.Referrer + s.Referee
}

// Match filters rules down to the active ones for the action. serviceSlug is
// only consulted for dynamic_services actions, where rules are per-service.
func Match(rules []models.RewardRule, actionType models.ActionType, serviceSlug string) []models.RewardRule {
	var matched []models.RewardRule
	for _, r := range rules {
		if !r.IsActive || r.ActionType != actionType {
			continue
		}
		if actionType == models.ActionDynamicServices && r.ServiceSlug != serviceSlug {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

// IsValid reports whether the rule may fire at the given instant: active,
// inside its validity window, and under its total usage cap.
func IsValid(rule models.RewardRule, now time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return false
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return false
	}
	if rule.MaxTotalUses > 0 && rule.CurrentTotalUses >= rule.MaxTotalUses {
		return false
	}
	return true
}

// CalculateReward computes the payout of a rule against a transaction amount.
// A zero split means the rule does not apply (e.g. the transaction is below
// the rule's minimum); callers must treat that as a silent skip, never an
// error.
func CalculateReward(rule models.RewardRule, transactionAmount int64) RewardSplit {
	if rule.MinAmount > 0 && transactionAmount < rule.MinAmount {
		return RewardSplit{}
	}

	var amount int64
	switch rule.RewardType {
	case models.RewardFixed:
		if rule.Recipient == models.RecipientBoth {
			return RewardSplit{Referrer: rule.ReferrerRewardAmount, Referee: rule.RefereeRewardAmount}
		}
		amount = rule.RewardAmount
	case models.RewardPercentage:
		amount = decimal.NewFromInt(transactionAmount).
			Mul(rule.PercentageRate).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	default:
		return RewardSplit{}
	}

	switch rule.Recipient {
	case models.RecipientReferrer:
		return RewardSplit{Referrer: amount}
	case models.RecipientReferee:
		return RewardSplit{Referee: amount}
	case models.RecipientBoth:
		// Percentage rules have no per-party amounts; each side gets the
		// computed value.
		return RewardSplit{Referrer: amount, Referee: amount}
	}
	return RewardSplit{}
}
