package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"referral-rewards-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// SeedRule is the YAML shape of one admin-authored rule. Amounts are minor
// currency units; times are RFC 3339.
type SeedRule struct {
	Name                 string `yaml:"name"`
	ActionType           string `yaml:"action_type"`
	ServiceSlug          string `yaml:"service_slug"`
	Recipient            string `yaml:"recipient"`
	RewardType           string `yaml:"reward_type"`
	RewardAmount         int64  `yaml:"reward_amount"`
	PercentageRate       string `yaml:"percentage_rate"`
	ReferrerRewardAmount int64  `yaml:"referrer_reward_amount"`
	RefereeRewardAmount  int64  `yaml:"referee_reward_amount"`
	MinAmount            int64  `yaml:"min_amount"`
	MaxUsesPerUser       int64  `yaml:"max_uses_per_user"`
	MaxTotalUses         int64  `yaml:"max_total_uses"`
	ValidFrom            string `yaml:"valid_from"`
	ValidUntil           string `yaml:"valid_until"`
}

type seedFile struct {
	Rules []SeedRule `yaml:"rules"`
}

// LoadSeedFile parses a YAML rule seed into validated RewardRule values.
func LoadSeedFile(rulesFile string) ([]models.RewardRule, error) {
	var rulesPath string
	if filepath.IsAbs(rulesFile) {
		rulesPath = rulesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		rulesPath = filepath.Join(wd, rulesFile)
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", rulesFile, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", rulesFile, err)
	}

	rules := make([]models.RewardRule, 0, len(file.Rules))
	for i, seed := range file.Rules {
		rule, err := seed.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule at index %d: %w", i, err)
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

func (s SeedRule) toRule() (*models.RewardRule, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("missing name")
	}

	rule := &models.RewardRule{
		Name:                 s.Name,
		ActionType:           models.ActionType(s.ActionType),
		ServiceSlug:          s.ServiceSlug,
		Recipient:            models.RewardRecipient(s.Recipient),
		RewardType:           models.RewardType(s.RewardType),
		RewardAmount:         s.RewardAmount,
		ReferrerRewardAmount: s.ReferrerRewardAmount,
		RefereeRewardAmount:  s.RefereeRewardAmount,
		MinAmount:            s.MinAmount,
		MaxUsesPerUser:       s.MaxUsesPerUser,
		MaxTotalUses:         s.MaxTotalUses,
		IsActive:             true,
	}

	if s.PercentageRate != "" {
		rate, err := decimal.NewFromString(s.PercentageRate)
		if err != nil {
			return nil, fmt.Errorf("invalid percentage rate %q: %w", s.PercentageRate, err)
		}
		rule.PercentageRate = rate
	}
	if s.ValidFrom != "" {
		t, err := time.Parse(time.RFC3339, s.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid valid_from %q: %w", s.ValidFrom, err)
		}
		rule.ValidFrom = &t
	}
	if s.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339, s.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("invalid valid_until %q: %w", s.ValidUntil, err)
		}
		rule.ValidUntil = &t
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}
