package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ActionType classifies the qualifying actions a rule can fire on.
type ActionType string

const (
	ActionLottery         ActionType = "lottery"
	ActionDynamicServices ActionType = "dynamic_services"
	ActionHozori          ActionType = "hozori"
	ActionPayment         ActionType = "payment"
	ActionSignup          ActionType = "signup"
)

// RewardRecipient names who gets paid when a rule fires.
type RewardRecipient string

const (
	RecipientReferrer RewardRecipient = "referrer"
	RecipientReferee  RewardRecipient = "referee"
	RecipientBoth     RewardRecipient = "both"
)

// RewardType is the closed set of reward shapes.
type RewardType string

const (
	RewardFixed      RewardType = "fixed"
	RewardPercentage RewardType = "percentage"
)

// RewardRule is an admin-authored policy describing when and how much to
// reward the referrer and/or referee for a qualifying action.
//
// Field usage by variant:
//   - fixed + referrer|referee: RewardAmount
//   - fixed + both:             ReferrerRewardAmount, RefereeRewardAmount
//   - percentage (any):         PercentageRate
type RewardRule struct {
	Id                   string          `db:"id"`
	Name                 string          `db:"name"`
	ActionType           ActionType      `db:"action_type"`
	ServiceSlug          string          `db:"service_slug"` // required iff ActionType is dynamic_services
	Recipient            RewardRecipient `db:"recipient"`
	RewardType           RewardType      `db:"reward_type"`
	RewardAmount         int64           `db:"reward_amount"`
	PercentageRate       decimal.Decimal `db:"percentage_rate"`
	ReferrerRewardAmount int64           `db:"referrer_reward_amount"`
	RefereeRewardAmount  int64           `db:"referee_reward_amount"`
	MinAmount            int64           `db:"min_amount"`         // 0 = no minimum
	MaxUsesPerUser       int64           `db:"max_uses_per_user"`  // 0 = unlimited
	MaxTotalUses         int64           `db:"max_total_uses"`     // 0 = unlimited
	CurrentTotalUses     int64           `db:"current_total_uses"`
	ValidFrom            *time.Time      `db:"valid_from"`
	ValidUntil           *time.Time      `db:"valid_until"`
	IsActive             bool            `db:"is_active"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// Validate rejects rule shapes that mix fields of the wrong variant.
func (r *RewardRule) Validate() error {
	switch r.ActionType {
	case ActionLottery, ActionDynamicServices, ActionHozori, ActionPayment, ActionSignup:
	default:
		return fmt.Errorf("unknown action type %q", r.ActionType)
	}
	if r.ActionType == ActionDynamicServices && r.ServiceSlug == "" {
		return fmt.Errorf("rule %q: dynamic_services rules require a service slug", r.Name)
	}
	if r.ActionType != ActionDynamicServices && r.ServiceSlug != "" {
		return fmt.Errorf("rule %q: service slug is only valid for dynamic_services rules", r.Name)
	}

	switch r.Recipient {
	case RecipientReferrer, RecipientReferee, RecipientBoth:
	default:
		return fmt.Errorf("rule %q: unknown recipient %q", r.Name, r.Recipient)
	}

	switch r.RewardType {
	case RewardFixed:
		if r.PercentageRate.Sign() != 0 {
			return fmt.Errorf("rule %q: fixed rules must not carry a percentage rate", r.Name)
		}
		if r.Recipient == RecipientBoth {
			if r.ReferrerRewardAmount <= 0 || r.RefereeRewardAmount <= 0 {
				return fmt.Errorf("rule %q: fixed both-party rules require positive referrer and referee amounts", r.Name)
			}
		} else if r.RewardAmount <= 0 {
			return fmt.Errorf("rule %q: fixed rules require a positive reward amount", r.Name)
		}
	case RewardPercentage:
		if r.PercentageRate.Sign() <= 0 || r.PercentageRate.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("rule %q: percentage rate must be in (0, 100], got %s", r.Name, r.PercentageRate)
		}
		if r.RewardAmount != 0 || r.ReferrerRewardAmount != 0 || r.RefereeRewardAmount != 0 {
			return fmt.Errorf("rule %q: percentage rules must not carry fixed amounts", r.Name)
		}
	default:
		return fmt.Errorf("rule %q: unknown reward type %q", r.Name, r.RewardType)
	}

	if r.MinAmount < 0 || r.MaxUsesPerUser < 0 || r.MaxTotalUses < 0 {
		return fmt.Errorf("rule %q: caps and minimums must not be negative", r.Name)
	}
	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidUntil.Before(*r.ValidFrom) {
		return fmt.Errorf("rule %q: validity window ends before it starts", r.Name)
	}
	return nil
}
