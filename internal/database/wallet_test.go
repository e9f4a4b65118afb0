package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// An in-memory database exists per connection, so the pool must not
	// open a second one.
	db.SetMaxOpenConns(1)

	service := NewServiceWithDB(db)

	// Use the actual schema initialization
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func mustCreateEntry(t *testing.T, service *Service, params store.CreateEntryParams) *models.WalletEntry {
	t.Helper()
	entry, err := service.CreateEntry(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	return entry
}

func TestCreateEntry_RejectsNonPositiveAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for _, amount := range []int64{0, -500} {
		_, err := service.CreateEntry(ctx, store.CreateEntryParams{
			OwnerId: "user1",
			Kind:    models.EntryIncome,
			Amount:  amount,
			Tag:     "test",
			Status:  models.EntryPending,
		})
		if !errors.Is(err, store.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount for amount %d, got: %v", amount, err)
		}
	}
}

func TestBalance_OnlyVerifiedEntriesCount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	ownerId := "user1"

	// Verified income of 1000, verified outcome of 300, plus a pending
	// income and a rejected outcome that must not move the balance.
	mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: ownerId, Kind: models.EntryIncome, Amount: 1000, Tag: "deposit", Status: models.EntryVerified,
	})
	mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: ownerId, Kind: models.EntryOutcome, Amount: 300, Tag: "purchase", Status: models.EntryVerified,
	})
	mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: ownerId, Kind: models.EntryIncome, Amount: 5000, Tag: "deposit", Status: models.EntryPending,
	})
	rejected := mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: ownerId, Kind: models.EntryOutcome, Amount: 200, Tag: "purchase", Status: models.EntryPending,
	})
	if _, err := service.FinalizeEntry(ctx, rejected.Id, models.EntryRejected, "admin1"); err != nil {
		t.Fatalf("FinalizeEntry to rejected failed: %v", err)
	}

	balance, err := service.Balance(ctx, ownerId)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 700 {
		t.Errorf("Expected balance 700, got %d", balance)
	}

	// Other owners are unaffected.
	other, err := service.Balance(ctx, "user2")
	if err != nil {
		t.Fatalf("Balance for empty wallet failed: %v", err)
	}
	if other != 0 {
		t.Errorf("Expected empty wallet balance 0, got %d", other)
	}
}

func TestFinalizeEntry_SingleTransition(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry := mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: "user1", Kind: models.EntryIncome, Amount: 400, Tag: "deposit", Status: models.EntryPending,
	})

	verified, err := service.FinalizeEntry(ctx, entry.Id, models.EntryVerified, "admin1")
	if err != nil {
		t.Fatalf("FinalizeEntry failed: %v", err)
	}
	if verified.Status != models.EntryVerified {
		t.Errorf("Expected status verified, got %s", verified.Status)
	}
	if verified.VerifiedAt == nil {
		t.Error("Expected VerifiedAt to be set")
	}
	if verified.VerifiedBy != "admin1" {
		t.Errorf("Expected VerifiedBy admin1, got %s", verified.VerifiedBy)
	}

	// Second finalization must fail, even to the same status.
	_, err = service.FinalizeEntry(ctx, entry.Id, models.EntryRejected, "admin2")
	if !errors.Is(err, store.ErrAlreadyFinalized) {
		t.Errorf("Expected ErrAlreadyFinalized, got: %v", err)
	}

	_, err = service.FinalizeEntry(ctx, "missing-entry", models.EntryVerified, "admin1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing entry, got: %v", err)
	}

	_, err = service.FinalizeEntry(ctx, entry.Id, models.EntryPending, "admin1")
	if err == nil {
		t.Error("Expected error finalizing to pending")
	}
}

func TestSnapshots_AppendOnlyHistory(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	ownerId := "user1"

	_, err := service.LatestSnapshot(ctx, ownerId)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing snapshot, got: %v", err)
	}

	if _, err := service.AppendSnapshot(ctx, ownerId, 100); err != nil {
		t.Fatalf("AppendSnapshot failed: %v", err)
	}
	if _, err := service.AppendSnapshot(ctx, ownerId, 250); err != nil {
		t.Fatalf("AppendSnapshot failed: %v", err)
	}

	latest, err := service.LatestSnapshot(ctx, ownerId)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest.Amount != 250 {
		t.Errorf("Expected latest snapshot amount 250, got %d", latest.Amount)
	}
}

func TestListEntries_NewestFirst(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	first := mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: "user1", Kind: models.EntryIncome, Amount: 10, Tag: "a", Status: models.EntryVerified,
	})
	time.Sleep(2 * time.Millisecond)
	second := mustCreateEntry(t, service, store.CreateEntryParams{
		OwnerId: "user1", Kind: models.EntryIncome, Amount: 20, Tag: "b", Status: models.EntryVerified,
	})

	entries, err := service.ListEntries(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Id != second.Id || entries[1].Id != first.Id {
		t.Errorf("Expected newest-first order, got %s then %s", entries[0].Id, entries[1].Id)
	}
}
