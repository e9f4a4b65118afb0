package rules

import (
	"os"
	"path/filepath"
	"testing"

	"referral-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

func writeSeedFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeedFile_ParsesRules(t *testing.T) {
	path := writeSeedFile(t, `
rules:
  - name: visa-signup-bonus
    action_type: dynamic_services
    service_slug: visa-fee
    recipient: both
    reward_type: fixed
    referrer_reward_amount: 500
    referee_reward_amount: 200
    min_amount: 1000
    max_uses_per_user: 1
  - name: payment-cashback
    action_type: payment
    recipient: referrer
    reward_type: percentage
    percentage_rate: "2.5"
    valid_until: "2027-01-01T00:00:00Z"
`)

	loaded, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(loaded))
	}

	bonus := loaded[0]
	if bonus.ActionType != models.ActionDynamicServices || bonus.ServiceSlug != "visa-fee" {
		t.Errorf("Unexpected action binding: %s/%s", bonus.ActionType, bonus.ServiceSlug)
	}
	if bonus.ReferrerRewardAmount != 500 || bonus.RefereeRewardAmount != 200 {
		t.Errorf("Unexpected amounts: %d/%d", bonus.ReferrerRewardAmount, bonus.RefereeRewardAmount)
	}
	if !bonus.IsActive {
		t.Error("Expected seeded rules to be active")
	}

	cashback := loaded[1]
	if !cashback.PercentageRate.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected rate 2.5, got %s", cashback.PercentageRate)
	}
	if cashback.ValidUntil == nil {
		t.Error("Expected valid_until to be parsed")
	}
}

func TestLoadSeedFile_RejectsInvalidRules(t *testing.T) {
	// Slug on a non-dynamic action fails rule validation.
	path := writeSeedFile(t, `
rules:
  - name: broken
    action_type: lottery
    service_slug: visa-fee
    recipient: referrer
    reward_type: fixed
    reward_amount: 100
`)
	if _, err := LoadSeedFile(path); err == nil {
		t.Fatal("Expected validation error for slug on lottery rule")
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing seed file")
	}
}
