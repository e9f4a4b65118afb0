package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssueReward applies one rule firing atomically: the duplicate check for the
// (referral, rule, transaction) tuple, the per-user usage cap, the reward
// rows, the rule usage counter and the referral rollup all commit together or
// not at all. Two concurrent calls for the same transaction race on the
// unique reward index; the loser gets ErrDuplicateReward.
func (s *Service) IssueReward(ctx context.Context, params store.IssueRewardParams) ([]models.ReferralReward, error) {
	zap.L().Info("Issuing reward",
		zap.String("referral_id", params.ReferralId),
		zap.String("rule_id", params.RuleId),
		zap.String("transaction_id", params.TransactionId),
		zap.Int64("referrer_amount", params.ReferrerAmount),
		zap.Int64("referee_amount", params.RefereeAmount))

	if params.ReferrerAmount <= 0 && params.RefereeAmount <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Idempotency check: the same transaction must not be rewarded twice
	// under the same rule.
	var existingId string
	err = tx.QueryRowContext(ctx, queryCheckDuplicateReward,
		params.ReferralId, params.RuleId, params.TransactionId).Scan(&existingId)
	if err == nil {
		zap.L().Warn("Duplicate reward detected, skipping",
			zap.String("transaction_id", params.TransactionId),
			zap.String("existing_reward_id", existingId))
		return nil, fmt.Errorf("%w: transaction %s", store.ErrDuplicateReward, params.TransactionId)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check for duplicate reward: %w", err)
	}

	if params.MaxUsesPerUser > 0 {
		var used int64
		if err := tx.QueryRowContext(ctx, queryCountRuleRewards, params.ReferralId, params.RuleId).Scan(&used); err != nil {
			return nil, fmt.Errorf("failed to count rule rewards: %w", err)
		}
		if used >= params.MaxUsesPerUser {
			return nil, fmt.Errorf("%w: rule %s used %d times for referral %s",
				store.ErrUsageCapReached, params.RuleId, used, params.ReferralId)
		}
	}

	now := time.Now().UTC()
	var created []models.ReferralReward
	recipients := []struct {
		userId string
		value  int64
	}{
		{params.ReferrerId, params.ReferrerAmount},
		{params.RefereeId, params.RefereeAmount},
	}
	for _, rec := range recipients {
		if rec.value <= 0 {
			continue
		}
		reward := models.ReferralReward{
			Id:            uuid.New().String(),
			ReferralId:    params.ReferralId,
			UserId:        rec.userId,
			RuleId:        params.RuleId,
			Kind:          models.RewardWalletCredit,
			Value:         rec.value,
			Status:        models.RewardPending,
			TransactionId: params.TransactionId,
			CreatedAt:     now,
		}
		_, err := tx.ExecContext(ctx, queryInsertReward,
			reward.Id, reward.ReferralId, reward.UserId, reward.RuleId, reward.Kind,
			reward.Value, reward.Status, reward.TransactionId, reward.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: transaction %s", store.ErrDuplicateReward, params.TransactionId)
			}
			return nil, fmt.Errorf("failed to insert reward: %w", err)
		}
		created = append(created, reward)
	}

	// One firing counts once against the rule cap regardless of how many
	// parties it pays.
	if _, err := tx.ExecContext(ctx, queryIncrementRuleUses, now, params.RuleId); err != nil {
		return nil, fmt.Errorf("failed to increment rule usage: %w", err)
	}

	total := params.ReferrerAmount + params.RefereeAmount
	if _, err := tx.ExecContext(ctx, queryAddReferralRewards, total, now, params.ReferralId); err != nil {
		return nil, fmt.Errorf("failed to update referral rollup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrDuplicateReward, params.TransactionId)
		}
		return nil, fmt.Errorf("failed to commit reward issuance: %w", err)
	}

	zap.L().Info("Reward issued",
		zap.String("referral_id", params.ReferralId),
		zap.String("rule_id", params.RuleId),
		zap.String("transaction_id", params.TransactionId),
		zap.Int("rewards_created", len(created)),
		zap.Int64("total_value", total))

	return created, nil
}

func scanReward(row entryScanner) (*models.ReferralReward, error) {
	var r models.ReferralReward
	var claimedAt sql.NullTime
	err := row.Scan(&r.Id, &r.ReferralId, &r.UserId, &r.RuleId, &r.Kind,
		&r.Value, &r.Status, &r.TransactionId, &r.CreatedAt, &claimedAt)
	if err != nil {
		return nil, err
	}
	if claimedAt.Valid {
		r.ClaimedAt = &claimedAt.Time
	}
	return &r, nil
}

func (s *Service) GetReward(ctx context.Context, rewardId string) (*models.ReferralReward, error) {
	reward, err := scanReward(s.db.QueryRowContext(ctx, queryGetReward, rewardId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: reward %s", store.ErrNotFound, rewardId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return reward, nil
}

func (s *Service) ListRewardsByUser(ctx context.Context, userId string, limit, offset int) ([]models.ReferralReward, error) {
	rows, err := s.db.QueryContext(ctx, queryListRewardsByUser, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var rewards []models.ReferralReward
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, *reward)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reward rows: %w", err)
	}
	return rewards, nil
}

// ClaimReward converts a pending reward into spendable balance: the status
// flip, the verified income entry and the balance snapshot commit as one
// transaction. The conditional update on status='pending' means exactly one
// of any number of concurrent claimers wins.
func (s *Service) ClaimReward(ctx context.Context, params store.ClaimRewardParams) (*models.WalletEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reward, err := scanReward(tx.QueryRowContext(ctx, queryGetReward, params.RewardId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: reward %s", store.ErrNotFound, params.RewardId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}

	switch reward.Status {
	case models.RewardClaimed:
		return nil, fmt.Errorf("%w: reward %s", store.ErrAlreadyClaimed, params.RewardId)
	case models.RewardExpired:
		return nil, fmt.Errorf("%w: reward %s", store.ErrRewardExpired, params.RewardId)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryClaimReward, now, params.RewardId)
	if err != nil {
		return nil, fmt.Errorf("failed to claim reward: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Lost the race to a concurrent claimer.
		return nil, fmt.Errorf("%w: reward %s", store.ErrAlreadyClaimed, params.RewardId)
	}

	// Claimed rewards credit the wallet as immediately-verified income.
	entry := &models.WalletEntry{
		Id:          newEntryId(),
		OwnerId:     reward.UserId,
		Kind:        models.EntryIncome,
		Amount:      reward.Value,
		Tag:         params.Tag,
		Description: params.Description,
		Status:      models.EntryVerified,
		CreatedAt:   now,
		VerifiedAt:  &now,
		VerifiedBy:  reward.UserId,
	}
	_, err = tx.ExecContext(ctx, queryInsertEntry,
		entry.Id, entry.OwnerId, entry.Kind, entry.Amount, entry.Tag, entry.Description,
		entry.Status, entry.CreatedAt, now, entry.VerifiedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert claim credit: %w", err)
	}

	// Append a snapshot of the post-claim balance, skipping when it matches
	// the last recorded one.
	var balance int64
	if err := tx.QueryRowContext(ctx, queryBalance, reward.UserId).Scan(&balance); err != nil {
		return nil, fmt.Errorf("failed to derive post-claim balance: %w", err)
	}
	var lastAmount int64
	var lastId string
	err = tx.QueryRowContext(ctx, queryLatestSnapshot, reward.UserId).
		Scan(&lastId, new(string), &lastAmount, new(time.Time))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	if err == sql.ErrNoRows || lastAmount != balance {
		_, err = tx.ExecContext(ctx, queryInsertSnapshot, uuid.New().String(), reward.UserId, balance, now)
		if err != nil {
			return nil, fmt.Errorf("failed to append snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	zap.L().Info("Reward claimed",
		zap.String("reward_id", params.RewardId),
		zap.String("user_id", reward.UserId),
		zap.Int64("value", reward.Value),
		zap.Int64("new_balance", balance))

	return entry, nil
}

func (s *Service) SetRewardStatus(ctx context.Context, rewardId string, status models.RewardStatus) error {
	result, err := s.db.ExecContext(ctx, querySetRewardStatus, status, rewardId)
	if err != nil {
		return fmt.Errorf("failed to set reward status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: reward %s", store.ErrNotFound, rewardId)
	}
	return nil
}

func (s *Service) ExpireRewards(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryExpireRewards, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire rewards: %w", err)
	}
	return result.RowsAffected()
}
