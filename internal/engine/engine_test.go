package engine

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"referral-rewards-go/internal/database"
	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/referral"
	"referral-rewards-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type testEnv struct {
	db       *database.Service
	registry *referral.Registry
	engine   *Engine
}

func setupTestEngine(t *testing.T) (*testEnv, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	dbService := database.NewServiceWithDB(db)
	if err := dbService.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	registry := referral.NewRegistry(dbService)
	return &testEnv{
		db:       dbService,
		registry: registry,
		engine:   New(dbService, registry),
	}, func() { db.Close() }
}

// seedReferral registers referrer1's code ABC123 and redeems it for referee1.
func seedReferral(t *testing.T, env *testEnv) *models.Referral {
	t.Helper()
	ctx := context.Background()
	if err := env.registry.RegisterCode(ctx, "referrer1", "ABC123"); err != nil {
		t.Fatalf("RegisterCode failed: %v", err)
	}
	ref, err := env.registry.Create(ctx, "ABC123", "referee1")
	if err != nil {
		t.Fatalf("Create referral failed: %v", err)
	}
	return ref
}

func seedRule(t *testing.T, env *testEnv, rule *models.RewardRule) *models.RewardRule {
	t.Helper()
	if err := env.db.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	return rule
}

func visaFeeRule() *models.RewardRule {
	return &models.RewardRule{
		Name:                 "visa-fee-bonus",
		ActionType:           models.ActionDynamicServices,
		ServiceSlug:          "visa-fee",
		Recipient:            models.RecipientBoth,
		RewardType:           models.RewardFixed,
		ReferrerRewardAmount: 500,
		RefereeRewardAmount:  200,
		IsActive:             true,
	}
}

func TestProcess_PaysBothPartiesAndCompletesReferral(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	ref := seedReferral(t, env)
	seedRule(t, env, visaFeeRule())

	result := env.engine.Process(ctx, models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        10000,
		TransactionId: "tx1",
	})

	if !result.Applied {
		t.Fatalf("Expected applied result, got %+v", result)
	}
	if result.ReferrerReward != 500 || result.RefereeReward != 200 {
		t.Errorf("Expected 500/200, got %d/%d", result.ReferrerReward, result.RefereeReward)
	}

	// Both parties hold a pending reward; no balance moved yet.
	for _, userId := range []string{"referrer1", "referee1"} {
		rewards, err := env.engine.Rewards(ctx, userId, 10, 0)
		if err != nil {
			t.Fatalf("Rewards failed: %v", err)
		}
		if len(rewards) != 1 || rewards[0].Status != models.RewardPending {
			t.Fatalf("Expected one pending reward for %s, got %+v", userId, rewards)
		}
		balance, err := env.db.Balance(ctx, userId)
		if err != nil {
			t.Fatalf("Balance failed: %v", err)
		}
		if balance != 0 {
			t.Errorf("Expected zero balance before claim for %s, got %d", userId, balance)
		}
	}

	got, err := env.registry.Get(ctx, ref.Id)
	if err != nil {
		t.Fatalf("Get referral failed: %v", err)
	}
	if got.Status != models.ReferralRewarded {
		t.Errorf("Expected referral rewarded, got %s", got.Status)
	}
	if got.TotalRewards != 700 {
		t.Errorf("Expected total rewards 700, got %d", got.TotalRewards)
	}
}

func TestProcess_NoReferral(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	seedRule(t, env, visaFeeRule())

	result := env.engine.Process(context.Background(), models.Action{
		UserId:        "stranger",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        10000,
		TransactionId: "tx1",
	})
	if result.Applied || result.Reason != models.SkipNoReferral {
		t.Errorf("Expected no_referral skip, got %+v", result)
	}
}

func TestProcess_DuplicateTransactionIsNoOp(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	ref := seedReferral(t, env)
	seedRule(t, env, visaFeeRule())

	action := models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        10000,
		TransactionId: "tx1",
	}

	first := env.engine.Process(ctx, action)
	if !first.Applied {
		t.Fatalf("Expected first run applied, got %+v", first)
	}

	// The referral is rewarded after the first run and therefore no longer
	// active, so the retry short-circuits before any rule evaluation.
	second := env.engine.Process(ctx, action)
	if second.Applied {
		t.Fatalf("Expected retry to be skipped, got %+v", second)
	}

	got, err := env.registry.Get(ctx, ref.Id)
	if err != nil {
		t.Fatalf("Get referral failed: %v", err)
	}
	if got.TotalRewards != 700 {
		t.Errorf("Expected total rewards unchanged at 700, got %d", got.TotalRewards)
	}
	rewards, err := env.engine.Rewards(ctx, "referrer1", 10, 0)
	if err != nil {
		t.Fatalf("Rewards failed: %v", err)
	}
	if len(rewards) != 1 {
		t.Errorf("Expected exactly 1 reward after retry, got %d", len(rewards))
	}
}

func TestProcess_DuplicateTransactionWhileStillActive(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	ref := seedReferral(t, env)
	seedRule(t, env, visaFeeRule())

	action := models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        10000,
		TransactionId: "tx1",
	}
	if result := env.engine.Process(ctx, action); !result.Applied {
		t.Fatalf("Expected first run applied, got %+v", result)
	}

	// Force the referral back into view so the retry reaches the issuance
	// idempotency check itself.
	if err := env.db.SetReferralStatus(ctx, ref.Id, models.ReferralCompleted); err != nil {
		t.Fatalf("SetReferralStatus failed: %v", err)
	}

	result := env.engine.Process(ctx, action)
	if result.Applied || result.Reason != models.SkipAlreadyApplied {
		t.Errorf("Expected already_applied skip, got %+v", result)
	}
}

func TestProcess_MinAmountSkipStillCompletesReferral(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	ref := seedReferral(t, env)
	rule := visaFeeRule()
	rule.MinAmount = 5000
	seedRule(t, env, rule)

	result := env.engine.Process(ctx, models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        4999,
		TransactionId: "tx1",
	})
	if !result.Applied {
		t.Fatalf("Expected applied result with zero payout, got %+v", result)
	}
	if result.ReferrerReward != 0 || result.RefereeReward != 0 {
		t.Errorf("Expected zero payout below minimum, got %d/%d", result.ReferrerReward, result.RefereeReward)
	}

	// Completion tracks the action occurring, not the payout.
	got, err := env.registry.Get(ctx, ref.Id)
	if err != nil {
		t.Fatalf("Get referral failed: %v", err)
	}
	if got.Status != models.ReferralCompleted {
		t.Errorf("Expected referral completed, got %s", got.Status)
	}
}

func TestProcess_PercentageRule(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	seedReferral(t, env)
	seedRule(t, env, &models.RewardRule{
		Name:           "payment-cashback",
		ActionType:     models.ActionPayment,
		Recipient:      models.RecipientReferrer,
		RewardType:     models.RewardPercentage,
		PercentageRate: decimal.RequireFromString("2.5"),
		IsActive:       true,
	})

	result := env.engine.Process(ctx, models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionPayment,
		Amount:        1234,
		TransactionId: "tx1",
	})
	if !result.Applied {
		t.Fatalf("Expected applied result, got %+v", result)
	}
	// 2.5% of 1234, floored.
	if result.ReferrerReward != 30 {
		t.Errorf("Expected referrer reward 30, got %d", result.ReferrerReward)
	}
	if result.RefereeReward != 0 {
		t.Errorf("Expected no referee reward, got %d", result.RefereeReward)
	}
}

func TestClaim_CreditsBalanceExactlyOnce(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	seedReferral(t, env)
	seedRule(t, env, visaFeeRule())

	if result := env.engine.Process(ctx, models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        10000,
		TransactionId: "tx1",
	}); !result.Applied {
		t.Fatalf("Expected applied result, got %+v", result)
	}

	rewards, err := env.engine.Rewards(ctx, "referrer1", 10, 0)
	if err != nil {
		t.Fatalf("Rewards failed: %v", err)
	}
	rewardId := rewards[0].Id

	// A stranger cannot claim someone else's reward.
	_, err = env.engine.Claim(ctx, rewardId, "referee1", false)
	if !errors.Is(err, store.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got: %v", err)
	}

	entry, err := env.engine.Claim(ctx, rewardId, "referrer1", false)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if entry.Tag != ClaimTag {
		t.Errorf("Expected tag %s, got %s", ClaimTag, entry.Tag)
	}

	balance, err := env.db.Balance(ctx, "referrer1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 500 {
		t.Errorf("Expected balance 500 after claim, got %d", balance)
	}

	_, err = env.engine.Claim(ctx, rewardId, "referrer1", false)
	if !errors.Is(err, store.ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed on second claim, got: %v", err)
	}
	balance, err = env.db.Balance(ctx, "referrer1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 500 {
		t.Errorf("Expected balance unchanged at 500, got %d", balance)
	}

	// Admins may claim on a user's behalf; the credit still lands on the
	// reward's recipient.
	refereeRewards, err := env.engine.Rewards(ctx, "referee1", 10, 0)
	if err != nil {
		t.Fatalf("Rewards failed: %v", err)
	}
	adminEntry, err := env.engine.Claim(ctx, refereeRewards[0].Id, "admin1", true)
	if err != nil {
		t.Fatalf("Admin claim failed: %v", err)
	}
	if adminEntry.OwnerId != "referee1" {
		t.Errorf("Expected credit owned by referee1, got %s", adminEntry.OwnerId)
	}
}

func TestProcess_ExpiredRuleWindowSkipsSilently(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	seedReferral(t, env)

	rule := visaFeeRule()
	past := time.Now().UTC().Add(-24 * time.Hour)
	rule.ValidUntil = &past
	seedRule(t, env, rule)

	result := env.engine.Process(ctx, models.Action{
		UserId:        "referee1",
		ActionType:    models.ActionDynamicServices,
		ServiceSlug:   "visa-fee",
		Amount:        10000,
		TransactionId: "tx1",
	})
	if !result.Applied || result.ReferrerReward != 0 || result.RefereeReward != 0 {
		t.Errorf("Expected applied result with zero payout for ended rule, got %+v", result)
	}
}
