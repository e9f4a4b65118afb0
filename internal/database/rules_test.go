package database

import (
	"context"
	"errors"
	"testing"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreateRule_RejectsInvalidShapes(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	cases := []struct {
		name string
		rule models.RewardRule
	}{
		{
			name: "dynamic_services without slug",
			rule: models.RewardRule{
				Name: "bad", ActionType: models.ActionDynamicServices,
				Recipient: models.RecipientReferrer, RewardType: models.RewardFixed, RewardAmount: 100,
			},
		},
		{
			name: "slug on non-dynamic action",
			rule: models.RewardRule{
				Name: "bad", ActionType: models.ActionLottery, ServiceSlug: "visa-fee",
				Recipient: models.RecipientReferrer, RewardType: models.RewardFixed, RewardAmount: 100,
			},
		},
		{
			name: "fixed rule carrying a percentage rate",
			rule: models.RewardRule{
				Name: "bad", ActionType: models.ActionPayment,
				Recipient: models.RecipientReferrer, RewardType: models.RewardFixed,
				RewardAmount: 100, PercentageRate: decimal.NewFromInt(5),
			},
		},
		{
			name: "percentage rate above 100",
			rule: models.RewardRule{
				Name: "bad", ActionType: models.ActionPayment,
				Recipient: models.RecipientReferrer, RewardType: models.RewardPercentage,
				PercentageRate: decimal.NewFromInt(150),
			},
		},
		{
			name: "fixed both without per-party amounts",
			rule: models.RewardRule{
				Name: "bad", ActionType: models.ActionPayment,
				Recipient: models.RecipientBoth, RewardType: models.RewardFixed, RewardAmount: 100,
			},
		},
	}

	for _, tc := range cases {
		rule := tc.rule
		if err := service.CreateRule(ctx, &rule); err == nil {
			t.Errorf("Expected validation error for %s", tc.name)
		}
	}
}

func TestMatchRules_FiltersByActionAndSlug(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	visaRule := mustCreateRule(t, service, &models.RewardRule{
		Name: "visa-bonus", ActionType: models.ActionDynamicServices, ServiceSlug: "visa-fee",
		Recipient: models.RecipientReferrer, RewardType: models.RewardFixed, RewardAmount: 300,
		IsActive: true,
	})
	mustCreateRule(t, service, &models.RewardRule{
		Name: "passport-bonus", ActionType: models.ActionDynamicServices, ServiceSlug: "passport-fee",
		Recipient: models.RecipientReferrer, RewardType: models.RewardFixed, RewardAmount: 300,
		IsActive: true,
	})
	mustCreateRule(t, service, &models.RewardRule{
		Name: "lottery-bonus", ActionType: models.ActionLottery,
		Recipient: models.RecipientReferee, RewardType: models.RewardFixed, RewardAmount: 100,
		IsActive: true,
	})
	inactive := mustCreateRule(t, service, &models.RewardRule{
		Name: "old-visa-bonus", ActionType: models.ActionDynamicServices, ServiceSlug: "visa-fee",
		Recipient: models.RecipientReferrer, RewardType: models.RewardFixed, RewardAmount: 999,
		IsActive: true,
	})
	if err := service.DeactivateRule(ctx, inactive.Id); err != nil {
		t.Fatalf("DeactivateRule failed: %v", err)
	}

	matched, err := service.MatchRules(ctx, models.ActionDynamicServices, "visa-fee")
	if err != nil {
		t.Fatalf("MatchRules failed: %v", err)
	}
	if len(matched) != 1 || matched[0].Id != visaRule.Id {
		t.Errorf("Expected only the active visa-fee rule, got %d rules", len(matched))
	}

	matched, err = service.MatchRules(ctx, models.ActionLottery, "")
	if err != nil {
		t.Fatalf("MatchRules failed: %v", err)
	}
	if len(matched) != 1 || matched[0].Name != "lottery-bonus" {
		t.Errorf("Expected only the lottery rule, got %d rules", len(matched))
	}

	matched, err = service.MatchRules(ctx, models.ActionHozori, "")
	if err != nil {
		t.Fatalf("MatchRules failed: %v", err)
	}
	if len(matched) != 0 {
		t.Errorf("Expected no hozori rules, got %d", len(matched))
	}
}

func TestUpdateRule_RoundTripsPercentageRate(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	rule := mustCreateRule(t, service, &models.RewardRule{
		Name: "cashback", ActionType: models.ActionPayment,
		Recipient: models.RecipientBoth, RewardType: models.RewardPercentage,
		PercentageRate: decimal.RequireFromString("2.5"),
		IsActive:       true,
	})

	got, err := service.GetRule(ctx, rule.Id)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if !got.PercentageRate.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected rate 2.5, got %s", got.PercentageRate)
	}

	got.MinAmount = 10000
	if err := service.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	got, err = service.GetRule(ctx, rule.Id)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if got.MinAmount != 10000 {
		t.Errorf("Expected min amount 10000, got %d", got.MinAmount)
	}

	missing := *got
	missing.Id = "missing-rule"
	if err := service.UpdateRule(ctx, &missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing rule, got: %v", err)
	}
}
