package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// newEntryId returns a monotonic, time-sortable id. Wallet entries are an
// append-only sequence, so sortable ids keep insertion and creation order
// aligned.
func newEntryId() string {
	return ulid.Make().String()
}

type entryScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row entryScanner) (*models.WalletEntry, error) {
	var e models.WalletEntry
	var verifiedAt sql.NullTime
	err := row.Scan(&e.Id, &e.OwnerId, &e.Kind, &e.Amount, &e.Tag, &e.Description,
		&e.Status, &e.CreatedAt, &verifiedAt, &e.VerifiedBy)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		e.VerifiedAt = &verifiedAt.Time
	}
	return &e, nil
}

// CreateEntry appends one entry to the owner's ledger. Entries are immutable
// after this point except for a single pending -> verified|rejected flip.
func (s *Service) CreateEntry(ctx context.Context, params store.CreateEntryParams) (*models.WalletEntry, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", store.ErrInvalidAmount, params.Amount)
	}

	entry := &models.WalletEntry{
		Id:          newEntryId(),
		OwnerId:     params.OwnerId,
		Kind:        params.Kind,
		Amount:      params.Amount,
		Tag:         params.Tag,
		Description: params.Description,
		Status:      params.Status,
		CreatedAt:   time.Now().UTC(),
	}

	var verifiedAt any
	if entry.Status == models.EntryVerified {
		now := entry.CreatedAt
		entry.VerifiedAt = &now
		verifiedAt = now
	}

	_, err := s.db.ExecContext(ctx, queryInsertEntry,
		entry.Id, entry.OwnerId, entry.Kind, entry.Amount, entry.Tag, entry.Description,
		entry.Status, entry.CreatedAt, verifiedAt, entry.VerifiedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet entry: %w", err)
	}

	zap.L().Info("Wallet entry appended",
		zap.String("entry_id", entry.Id),
		zap.String("owner_id", entry.OwnerId),
		zap.String("kind", string(entry.Kind)),
		zap.Int64("amount", entry.Amount),
		zap.String("status", string(entry.Status)))

	return entry, nil
}

func (s *Service) GetEntry(ctx context.Context, entryId string) (*models.WalletEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, queryGetEntry, entryId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: entry %s", store.ErrNotFound, entryId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet entry: %w", err)
	}
	return entry, nil
}

// FinalizeEntry flips a pending entry to verified or rejected. The update is
// conditional on the pending status so repeated or concurrent finalization
// fails with ErrAlreadyFinalized instead of overwriting.
func (s *Service) FinalizeEntry(ctx context.Context, entryId string, status models.EntryStatus, verifiedBy string) (*models.WalletEntry, error) {
	if status != models.EntryVerified && status != models.EntryRejected {
		return nil, fmt.Errorf("entry can only be finalized to verified or rejected, got %q", status)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, queryFinalizeEntry, status, now, verifiedBy, entryId)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize wallet entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish a missing entry from one already finalized.
		if _, err := s.GetEntry(ctx, entryId); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: entry %s", store.ErrAlreadyFinalized, entryId)
	}

	zap.L().Info("Wallet entry finalized",
		zap.String("entry_id", entryId),
		zap.String("status", string(status)),
		zap.String("verified_by", verifiedBy))

	return s.GetEntry(ctx, entryId)
}

// Balance derives the owner's balance from the ledger: verified incomes minus
// verified outcomes. Snapshots are never consulted.
func (s *Service) Balance(ctx context.Context, ownerId string) (int64, error) {
	var balance int64
	if err := s.db.QueryRowContext(ctx, queryBalance, ownerId).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to derive balance: %w", err)
	}
	return balance, nil
}

func (s *Service) ListEntries(ctx context.Context, ownerId string, limit, offset int) ([]models.WalletEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListEntries, ownerId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet entries: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.WalletEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet entry rows: %w", err)
	}
	return entries, nil
}

func (s *Service) LatestSnapshot(ctx context.Context, ownerId string) (*models.BalanceSnapshot, error) {
	var snap models.BalanceSnapshot
	err := s.db.QueryRowContext(ctx, queryLatestSnapshot, ownerId).
		Scan(&snap.Id, &snap.OwnerId, &snap.Amount, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no snapshots for owner %s", store.ErrNotFound, ownerId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Service) AppendSnapshot(ctx context.Context, ownerId string, amount int64) (*models.BalanceSnapshot, error) {
	snap := &models.BalanceSnapshot{
		Id:        uuid.New().String(),
		OwnerId:   ownerId,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, queryInsertSnapshot, snap.Id, snap.OwnerId, snap.Amount, snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append snapshot: %w", err)
	}
	return snap, nil
}
