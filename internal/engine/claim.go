package engine

import (
	"context"
	"fmt"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"
)

// ClaimTag labels the wallet credit a claimed reward produces.
const ClaimTag = "referral_reward"

// Claim converts a pending reward into an immediately-verified wallet credit.
// Only the reward's recipient (or an admin) may claim, and a reward can be
// claimed exactly once; this is the only path by which a reward becomes
// spendable money.
func (e *Engine) Claim(ctx context.Context, rewardId, requesterId string, isAdmin bool) (*models.WalletEntry, error) {
	reward, err := e.store.GetReward(ctx, rewardId)
	if err != nil {
		return nil, err
	}
	if reward.UserId != requesterId && !isAdmin {
		return nil, fmt.Errorf("%w: reward %s does not belong to user %s", store.ErrForbidden, rewardId, requesterId)
	}

	return e.store.ClaimReward(ctx, store.ClaimRewardParams{
		RewardId:    rewardId,
		Tag:         ClaimTag,
		Description: fmt.Sprintf("referral reward %s", rewardId),
	})
}

// Rewards lists a user's rewards, newest first.
func (e *Engine) Rewards(ctx context.Context, userId string, limit, offset int) ([]models.ReferralReward, error) {
	return e.store.ListRewardsByUser(ctx, userId, limit, offset)
}
