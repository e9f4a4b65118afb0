// Package wallet is the ledger service: the single source of truth for how
// much money a user has. Balances are always derived from verified entries;
// snapshots are an observability convenience, never an input.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"go.uber.org/zap"
)

type Service struct {
	store store.Store

	// Per-owner mutexes serialize the read-check-append windows in Debit and
	// AppendSnapshot. Plain appends (Credit) never need the lock.
	locks sync.Map // ownerId -> *sync.Mutex
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) ownerLock(ownerId string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(ownerId, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Credit appends an income entry. Credits are unconditional: rewards and
// top-ups never require available funds.
func (s *Service) Credit(ctx context.Context, ownerId string, amount int64, tag, description string, initialStatus models.EntryStatus) (*models.WalletEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", store.ErrInvalidAmount, amount)
	}
	return s.store.CreateEntry(ctx, store.CreateEntryParams{
		OwnerId:     ownerId,
		Kind:        models.EntryIncome,
		Amount:      amount,
		Tag:         tag,
		Description: description,
		Status:      initialStatus,
	})
}

// Debit appends an immediately-verified outcome entry. Debits are assumed
// pre-authorized by the caller, but the balance-sufficiency check must hold:
// a debit never drives the balance negative. The per-owner lock keeps two
// concurrent debits from both reading the same stale balance.
func (s *Service) Debit(ctx context.Context, ownerId string, amount int64, tag, description string) (*models.WalletEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", store.ErrInvalidAmount, amount)
	}

	lock := s.ownerLock(ownerId)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.store.Balance(ctx, ownerId)
	if err != nil {
		return nil, fmt.Errorf("failed to derive balance before debit: %w", err)
	}
	if amount > balance {
		zap.L().Warn("Debit rejected",
			zap.String("owner_id", ownerId),
			zap.Int64("amount", amount),
			zap.Int64("balance", balance))
		return nil, fmt.Errorf("%w: need %d, have %d", store.ErrInsufficientFunds, amount, balance)
	}

	return s.store.CreateEntry(ctx, store.CreateEntryParams{
		OwnerId:     ownerId,
		Kind:        models.EntryOutcome,
		Amount:      amount,
		Tag:         tag,
		Description: description,
		Status:      models.EntryVerified,
	})
}

// Verify transitions a pending entry to verified and stamps the verifier.
func (s *Service) Verify(ctx context.Context, entryId, verifiedBy string) (*models.WalletEntry, error) {
	return s.store.FinalizeEntry(ctx, entryId, models.EntryVerified, verifiedBy)
}

// Reject finalizes a pending entry as rejected; it never counts toward the
// balance afterwards.
func (s *Service) Reject(ctx context.Context, entryId, verifiedBy string) (*models.WalletEntry, error) {
	return s.store.FinalizeEntry(ctx, entryId, models.EntryRejected, verifiedBy)
}

// CurrentBalance is always computed from the ledger, never served from a
// snapshot.
func (s *Service) CurrentBalance(ctx context.Context, ownerId string) (int64, error) {
	return s.store.Balance(ctx, ownerId)
}

// Entries returns a page of the owner's ledger, newest first.
func (s *Service) Entries(ctx context.Context, ownerId string, limit, offset int) ([]models.WalletEntry, error) {
	return s.store.ListEntries(ctx, ownerId, limit, offset)
}

// AppendSnapshot records the current derived balance, skipping the append
// when it matches the last recorded snapshot.
func (s *Service) AppendSnapshot(ctx context.Context, ownerId string) (*models.BalanceSnapshot, error) {
	lock := s.ownerLock(ownerId)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.store.Balance(ctx, ownerId)
	if err != nil {
		return nil, fmt.Errorf("failed to derive balance for snapshot: %w", err)
	}

	last, err := s.store.LatestSnapshot(ctx, ownerId)
	switch {
	case err == nil && last.Amount == balance:
		return last, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	return s.store.AppendSnapshot(ctx, ownerId, balance)
}
