package models

import "time"

// ReferralStatus only ever moves forward:
// pending -> completed -> rewarded, with expired reachable from
// pending or completed.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralRewarded  ReferralStatus = "rewarded"
	ReferralExpired   ReferralStatus = "expired"
)

// Referral links a referrer to the user who redeemed their code. A user can
// be referred once, ever (RefereeId is unique), and never by themselves.
type Referral struct {
	Id           string         `db:"id"`
	ReferrerId   string         `db:"referrer_id"`
	RefereeId    string         `db:"referee_id"`
	ReferralCode string         `db:"referral_code"`
	Status       ReferralStatus `db:"status"`
	TotalRewards int64          `db:"total_rewards"`
	CreatedAt    time.Time      `db:"created_at"`
	CompletedAt  *time.Time     `db:"completed_at"`
	RewardedAt   *time.Time     `db:"rewarded_at"`
}
