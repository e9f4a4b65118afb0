package store

import (
	"context"
	"errors"
	"time"

	"referral-rewards-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyFinalized  = errors.New("entry already finalized")
	ErrInvalidCode       = errors.New("unknown referral code")
	ErrSelfReferral      = errors.New("users cannot refer themselves")
	ErrAlreadyReferred   = errors.New("user already has a referral")
	ErrDuplicateReward   = errors.New("reward already issued for this transaction")
	ErrUsageCapReached   = errors.New("per-user usage cap reached for this rule")
	ErrAlreadyClaimed    = errors.New("reward already claimed")
	ErrRewardExpired     = errors.New("reward expired")
	ErrForbidden         = errors.New("forbidden")
)

// CreateEntryParams contains the parameters for appending a wallet entry.
type CreateEntryParams struct {
	OwnerId     string
	Kind        models.EntryKind
	Amount      int64
	Tag         string
	Description string
	Status      models.EntryStatus
}

// IssueRewardParams captures one rule firing against one qualifying
// transaction. The implementation must apply the whole issuance atomically:
// the (referral, rule, transaction) duplicate check, the per-user usage cap,
// the reward rows, the rule usage counter and the referral rollup either all
// take effect or none do.
type IssueRewardParams struct {
	ReferralId     string
	RuleId         string
	TransactionId  string
	ReferrerId     string
	RefereeId      string
	ReferrerAmount int64
	RefereeAmount  int64
	MaxUsesPerUser int64 // 0 = unlimited
}

// ClaimRewardParams identifies the reward being claimed and how the resulting
// wallet credit is labeled.
type ClaimRewardParams struct {
	RewardId    string
	Tag         string
	Description string
}

// Store defines the contract that every backend must satisfy.
type Store interface {
	// --- Wallet ledger ---
	CreateEntry(ctx context.Context, params CreateEntryParams) (*models.WalletEntry, error)
	GetEntry(ctx context.Context, entryId string) (*models.WalletEntry, error)
	FinalizeEntry(ctx context.Context, entryId string, status models.EntryStatus, verifiedBy string) (*models.WalletEntry, error)
	Balance(ctx context.Context, ownerId string) (int64, error)
	ListEntries(ctx context.Context, ownerId string, limit, offset int) ([]models.WalletEntry, error)
	LatestSnapshot(ctx context.Context, ownerId string) (*models.BalanceSnapshot, error)
	AppendSnapshot(ctx context.Context, ownerId string, amount int64) (*models.BalanceSnapshot, error)

	// --- Referral codes ---
	UpsertReferralCode(ctx context.Context, userId, code string) error
	FindReferralCodeOwner(ctx context.Context, code string) (string, error)

	// --- Referrals ---
	CreateReferral(ctx context.Context, referral *models.Referral) error
	GetReferral(ctx context.Context, referralId string) (*models.Referral, error)
	GetActiveReferralByReferee(ctx context.Context, refereeId string) (*models.Referral, error)
	GetReferralByReferee(ctx context.Context, refereeId string) (*models.Referral, error)
	MarkReferralCompleted(ctx context.Context, referralId string) error
	SetReferralStatus(ctx context.Context, referralId string, status models.ReferralStatus) error
	ListReferrals(ctx context.Context, limit, offset int) ([]models.Referral, error)
	ExpireReferrals(ctx context.Context, olderThan time.Time) (int64, error)

	// --- Reward rules ---
	CreateRule(ctx context.Context, rule *models.RewardRule) error
	UpdateRule(ctx context.Context, rule *models.RewardRule) error
	DeactivateRule(ctx context.Context, ruleId string) error
	GetRule(ctx context.Context, ruleId string) (*models.RewardRule, error)
	ListRules(ctx context.Context) ([]models.RewardRule, error)
	MatchRules(ctx context.Context, actionType models.ActionType, serviceSlug string) ([]models.RewardRule, error)

	// --- Rewards ---
	IssueReward(ctx context.Context, params IssueRewardParams) ([]models.ReferralReward, error)
	GetReward(ctx context.Context, rewardId string) (*models.ReferralReward, error)
	ListRewardsByUser(ctx context.Context, userId string, limit, offset int) ([]models.ReferralReward, error)
	ClaimReward(ctx context.Context, params ClaimRewardParams) (*models.WalletEntry, error)
	SetRewardStatus(ctx context.Context, rewardId string, status models.RewardStatus) error
	ExpireRewards(ctx context.Context, olderThan time.Time) (int64, error)

	// --- Lifecycle ---
	Close()
}
