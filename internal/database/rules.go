package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanRule(row entryScanner) (*models.RewardRule, error) {
	var r models.RewardRule
	var rateStr string
	var validFrom, validUntil sql.NullTime
	err := row.Scan(&r.Id, &r.Name, &r.ActionType, &r.ServiceSlug, &r.Recipient, &r.RewardType,
		&r.RewardAmount, &rateStr, &r.ReferrerRewardAmount, &r.RefereeRewardAmount,
		&r.MinAmount, &r.MaxUsesPerUser, &r.MaxTotalUses, &r.CurrentTotalUses,
		&validFrom, &validUntil, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.PercentageRate, err = decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse percentage rate %q: %w", rateStr, err)
	}
	if validFrom.Valid {
		r.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		r.ValidUntil = &validUntil.Time
	}
	return &r, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *Service) CreateRule(ctx context.Context, rule *models.RewardRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.Id == "" {
		rule.Id = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, queryInsertRule,
		rule.Id, rule.Name, rule.ActionType, rule.ServiceSlug, rule.Recipient, rule.RewardType,
		rule.RewardAmount, rule.PercentageRate.String(), rule.ReferrerRewardAmount, rule.RefereeRewardAmount,
		rule.MinAmount, rule.MaxUsesPerUser, rule.MaxTotalUses, rule.CurrentTotalUses,
		nullableTime(rule.ValidFrom), nullableTime(rule.ValidUntil), rule.IsActive,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	zap.L().Info("Reward rule created",
		zap.String("rule_id", rule.Id),
		zap.String("name", rule.Name),
		zap.String("action_type", string(rule.ActionType)))
	return nil
}

func (s *Service) UpdateRule(ctx context.Context, rule *models.RewardRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, queryUpdateRule,
		rule.Name, rule.ActionType, rule.ServiceSlug, rule.Recipient, rule.RewardType,
		rule.RewardAmount, rule.PercentageRate.String(), rule.ReferrerRewardAmount, rule.RefereeRewardAmount,
		rule.MinAmount, rule.MaxUsesPerUser, rule.MaxTotalUses,
		nullableTime(rule.ValidFrom), nullableTime(rule.ValidUntil), rule.IsActive,
		rule.UpdatedAt, rule.Id)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %s", store.ErrNotFound, rule.Id)
	}
	return nil
}

func (s *Service) DeactivateRule(ctx context.Context, ruleId string) error {
	result, err := s.db.ExecContext(ctx, queryDeactivateRule, time.Now().UTC(), ruleId)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: rule %s", store.ErrNotFound, ruleId)
	}
	zap.L().Info("Reward rule deactivated", zap.String("rule_id", ruleId))
	return nil
}

func (s *Service) GetRule(ctx context.Context, ruleId string) (*models.RewardRule, error) {
	rule, err := scanRule(s.db.QueryRowContext(ctx, queryGetRule, ruleId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: rule %s", store.ErrNotFound, ruleId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]models.RewardRule, error) {
	return s.queryRules(ctx, queryListRules)
}

// MatchRules returns active rules for the action type. serviceSlug must be
// empty for every action type except dynamic_services, where it selects the
// per-service rule set.
func (s *Service) MatchRules(ctx context.Context, actionType models.ActionType, serviceSlug string) ([]models.RewardRule, error) {
	return s.queryRules(ctx, queryMatchRules, actionType, serviceSlug)
}

func (s *Service) queryRules(ctx context.Context, query string, args ...any) ([]models.RewardRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var rules []models.RewardRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule rows: %w", err)
	}
	return rules, nil
}
