package models

// Action is the payment-confirmation signal handed to the reward engine by
// whichever subsystem finalizes a qualifying paid action. The triggering
// action must already be durably committed before the engine sees it.
type Action struct {
	UserId        string     `json:"user_id"`
	ActionType    ActionType `json:"action_type"`
	ServiceSlug   string     `json:"service_slug,omitempty"`
	Amount        int64      `json:"amount"`
	TransactionId string     `json:"transaction_id"`
}

// SkipReason explains a ProcessResult with Applied=false.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipNoReferral     SkipReason = "no_referral"
	SkipAlreadyApplied SkipReason = "already_applied"
	SkipInternalError  SkipReason = "internal_error"
)

// ProcessResult is the structured outcome of one engine run. Callers branch
// on it; logging is layered on top, not the mechanism for conveying outcome.
type ProcessResult struct {
	Applied        bool       `json:"applied"`
	Reason         SkipReason `json:"reason,omitempty"`
	ReferrerReward int64      `json:"referrer_reward"`
	RefereeReward  int64      `json:"referee_reward"`
}
