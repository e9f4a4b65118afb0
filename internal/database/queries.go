/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Wallet entry queries
	queryInsertEntry = `
		INSERT INTO wallet_entries (id, owner_id, kind, amount, tag, description, status, created_at, verified_at, verified_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEntry = `
		SELECT id, owner_id, kind, amount, tag, description, status, created_at, verified_at, verified_by
		FROM wallet_entries
		WHERE id = ?`

	queryFinalizeEntry = `
		UPDATE wallet_entries
		SET status = ?, verified_at = ?, verified_by = ?
		WHERE id = ? AND status = 'pending'`

	queryBalance = `
		SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount ELSE -amount END), 0)
		FROM wallet_entries
		WHERE owner_id = ? AND status = 'verified'`

	queryListEntries = `
		SELECT id, owner_id, kind, amount, tag, description, status, created_at, verified_at, verified_by
		FROM wallet_entries
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	// Snapshot queries
	queryLatestSnapshot = `
		SELECT id, owner_id, amount, created_at
		FROM balance_snapshots
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	queryInsertSnapshot = `
		INSERT INTO balance_snapshots (id, owner_id, amount, created_at)
		VALUES (?, ?, ?, ?)`

	// Referral code queries
	queryUpsertReferralCode = `
		INSERT INTO referral_codes (user_id, code, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET code = excluded.code`

	queryFindReferralCodeOwner = `
		SELECT user_id FROM referral_codes WHERE code = ?`

	// Referral queries
	queryInsertReferral = `
		INSERT INTO referrals (id, referrer_id, referee_id, referral_code, status, total_rewards, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetReferral = `
		SELECT id, referrer_id, referee_id, referral_code, status, total_rewards, created_at, completed_at, rewarded_at
		FROM referrals
		WHERE id = ?`

	// Rewarded and expired referrals are invisible to reward processing.
	queryGetActiveReferral = `
		SELECT id, referrer_id, referee_id, referral_code, status, total_rewards, created_at, completed_at, rewarded_at
		FROM referrals
		WHERE referee_id = ? AND status IN ('pending', 'completed')`

	queryGetReferralByReferee = `
		SELECT id, referrer_id, referee_id, referral_code, status, total_rewards, created_at, completed_at, rewarded_at
		FROM referrals
		WHERE referee_id = ?`

	queryMarkReferralCompleted = `
		UPDATE referrals
		SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'pending'`

	querySetReferralStatus = `
		UPDATE referrals SET status = ? WHERE id = ?`

	queryListReferrals = `
		SELECT id, referrer_id, referee_id, referral_code, status, total_rewards, created_at, completed_at, rewarded_at
		FROM referrals
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryExpireReferrals = `
		UPDATE referrals SET status = 'expired'
		WHERE status = 'pending' AND created_at < ?`

	// Rule queries
	queryInsertRule = `
		INSERT INTO reward_rules (
			id, name, action_type, service_slug, recipient, reward_type,
			reward_amount, percentage_rate, referrer_reward_amount, referee_reward_amount,
			min_amount, max_uses_per_user, max_total_uses, current_total_uses,
			valid_from, valid_until, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateRule = `
		UPDATE reward_rules
		SET name = ?, action_type = ?, service_slug = ?, recipient = ?, reward_type = ?,
		    reward_amount = ?, percentage_rate = ?, referrer_reward_amount = ?, referee_reward_amount = ?,
		    min_amount = ?, max_uses_per_user = ?, max_total_uses = ?,
		    valid_from = ?, valid_until = ?, is_active = ?, updated_at = ?
		WHERE id = ?`

	queryDeactivateRule = `
		UPDATE reward_rules SET is_active = 0, updated_at = ? WHERE id = ?`

	selectRuleColumns = `
		SELECT id, name, action_type, service_slug, recipient, reward_type,
		       reward_amount, percentage_rate, referrer_reward_amount, referee_reward_amount,
		       min_amount, max_uses_per_user, max_total_uses, current_total_uses,
		       valid_from, valid_until, is_active, created_at, updated_at
		FROM reward_rules`

	queryGetRule = selectRuleColumns + `
		WHERE id = ?`

	queryListRules = selectRuleColumns + `
		ORDER BY created_at`

	queryMatchRules = selectRuleColumns + `
		WHERE is_active = 1 AND action_type = ? AND service_slug = ?
		ORDER BY created_at`

	// Atomic usage counter increment, never read-then-write
	queryIncrementRuleUses = `
		UPDATE reward_rules
		SET current_total_uses = current_total_uses + 1, updated_at = ?
		WHERE id = ?`

	// Reward queries
	queryCheckDuplicateReward = `
		SELECT id FROM referral_rewards
		WHERE referral_id = ? AND rule_id = ? AND transaction_id = ?
		LIMIT 1`

	queryCountRuleRewards = `
		SELECT COUNT(*) FROM referral_rewards
		WHERE referral_id = ? AND rule_id = ?`

	queryInsertReward = `
		INSERT INTO referral_rewards (id, referral_id, user_id, rule_id, kind, value, status, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryAddReferralRewards = `
		UPDATE referrals
		SET total_rewards = total_rewards + ?,
		    status = CASE WHEN status = 'completed' THEN 'rewarded' ELSE status END,
		    rewarded_at = CASE WHEN status = 'completed' AND rewarded_at IS NULL THEN ? ELSE rewarded_at END
		WHERE id = ?`

	queryGetReward = `
		SELECT id, referral_id, user_id, rule_id, kind, value, status, transaction_id, created_at, claimed_at
		FROM referral_rewards
		WHERE id = ?`

	queryListRewardsByUser = `
		SELECT id, referral_id, user_id, rule_id, kind, value, status, transaction_id, created_at, claimed_at
		FROM referral_rewards
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Conditional claim: concurrent claimers race on rows affected
	queryClaimReward = `
		UPDATE referral_rewards
		SET status = 'claimed', claimed_at = ?
		WHERE id = ? AND status = 'pending'`

	querySetRewardStatus = `
		UPDATE referral_rewards SET status = ? WHERE id = ?`

	queryExpireRewards = `
		UPDATE referral_rewards SET status = 'expired'
		WHERE status = 'pending' AND created_at < ?`
)
