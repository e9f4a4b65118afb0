package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func scanReferral(row entryScanner) (*models.Referral, error) {
	var r models.Referral
	var completedAt, rewardedAt sql.NullTime
	err := row.Scan(&r.Id, &r.ReferrerId, &r.RefereeId, &r.ReferralCode, &r.Status,
		&r.TotalRewards, &r.CreatedAt, &completedAt, &rewardedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if rewardedAt.Valid {
		r.RewardedAt = &rewardedAt.Time
	}
	return &r, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *Service) UpsertReferralCode(ctx context.Context, userId, code string) error {
	_, err := s.db.ExecContext(ctx, queryUpsertReferralCode, userId, code, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("referral code %q already taken: %w", code, err)
		}
		return fmt.Errorf("failed to upsert referral code: %w", err)
	}
	return nil
}

func (s *Service) FindReferralCodeOwner(ctx context.Context, code string) (string, error) {
	var userId string
	err := s.db.QueryRowContext(ctx, queryFindReferralCodeOwner, code).Scan(&userId)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidCode, code)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up referral code: %w", err)
	}
	return userId, nil
}

// CreateReferral inserts the referral row. The unique index on referee_id
// guarantees at most one referral per referee, ever.
func (s *Service) CreateReferral(ctx context.Context, referral *models.Referral) error {
	_, err := s.db.ExecContext(ctx, queryInsertReferral,
		referral.Id, referral.ReferrerId, referral.RefereeId, referral.ReferralCode,
		referral.Status, referral.TotalRewards, referral.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: referee %s", store.ErrAlreadyReferred, referral.RefereeId)
		}
		return fmt.Errorf("failed to insert referral: %w", err)
	}

	zap.L().Info("Referral created",
		zap.String("referral_id", referral.Id),
		zap.String("referrer_id", referral.ReferrerId),
		zap.String("referee_id", referral.RefereeId))
	return nil
}

func (s *Service) GetReferral(ctx context.Context, referralId string) (*models.Referral, error) {
	referral, err := scanReferral(s.db.QueryRowContext(ctx, queryGetReferral, referralId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: referral %s", store.ErrNotFound, referralId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	return referral, nil
}

// GetActiveReferralByReferee returns the referee's referral only while its
// status is pending or completed; expired and rewarded referrals are
// invisible to reward processing.
func (s *Service) GetActiveReferralByReferee(ctx context.Context, refereeId string) (*models.Referral, error) {
	referral, err := scanReferral(s.db.QueryRowContext(ctx, queryGetActiveReferral, refereeId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no active referral for referee %s", store.ErrNotFound, refereeId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active referral: %w", err)
	}
	return referral, nil
}

func (s *Service) GetReferralByReferee(ctx context.Context, refereeId string) (*models.Referral, error) {
	referral, err := scanReferral(s.db.QueryRowContext(ctx, queryGetReferralByReferee, refereeId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no referral for referee %s", store.ErrNotFound, refereeId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral by referee: %w", err)
	}
	return referral, nil
}

// MarkReferralCompleted flips pending -> completed. The conditional update
// makes repeated calls no-ops, so it is safe on every qualifying action.
func (s *Service) MarkReferralCompleted(ctx context.Context, referralId string) error {
	_, err := s.db.ExecContext(ctx, queryMarkReferralCompleted, time.Now().UTC(), referralId)
	if err != nil {
		return fmt.Errorf("failed to mark referral completed: %w", err)
	}
	return nil
}

func (s *Service) SetReferralStatus(ctx context.Context, referralId string, status models.ReferralStatus) error {
	result, err := s.db.ExecContext(ctx, querySetReferralStatus, status, referralId)
	if err != nil {
		return fmt.Errorf("failed to set referral status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: referral %s", store.ErrNotFound, referralId)
	}
	return nil
}

func (s *Service) ListReferrals(ctx context.Context, limit, offset int) ([]models.Referral, error) {
	rows, err := s.db.QueryContext(ctx, queryListReferrals, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var referrals []models.Referral
	for rows.Next() {
		referral, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, *referral)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral rows: %w", err)
	}
	return referrals, nil
}

func (s *Service) ExpireReferrals(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryExpireReferrals, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire referrals: %w", err)
	}
	return result.RowsAffected()
}
