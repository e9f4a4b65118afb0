package models

import "time"

// RewardStatus is the lifecycle of an issued reward. Claiming is the only
// path that turns a reward into spendable wallet balance.
type RewardStatus string

const (
	RewardPending RewardStatus = "pending"
	RewardClaimed RewardStatus = "claimed"
	RewardExpired RewardStatus = "expired"
)

// RewardKind names what an issued reward pays out as. Wallet credits are the
// only kind the engine issues today.
type RewardKind string

const RewardWalletCredit RewardKind = "wallet_credit"

// ReferralReward is one issued reward: a claimable wallet credit linking a
// referral, the rule that fired, and the transaction that triggered it.
// (referral, rule, recipient, transaction) is unique; the
// (referral, rule, transaction) tuple is the idempotency key for processing.
type ReferralReward struct {
	Id            string       `db:"id"`
	ReferralId    string       `db:"referral_id"`
	UserId        string       `db:"user_id"` // recipient
	RuleId        string       `db:"rule_id"`
	Kind          RewardKind   `db:"kind"`
	Value         int64        `db:"value"`
	Status        RewardStatus `db:"status"`
	TransactionId string       `db:"transaction_id"`
	CreatedAt     time.Time    `db:"created_at"`
	ClaimedAt     *time.Time   `db:"claimed_at"`
}
