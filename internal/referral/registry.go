// Package referral tracks who referred whom and where each referral sits in
// its lifecycle: pending -> completed -> rewarded, with expired reachable
// from pending or completed. Status only ever moves forward.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusRank orders lifecycle states so admin overrides can be checked for
// forward motion. Expired terminates from any non-terminal state.
var statusRank = map[models.ReferralStatus]int{
	models.ReferralPending:   0,
	models.ReferralCompleted: 1,
	models.ReferralRewarded:  2,
	models.ReferralExpired:   3,
}

type Registry struct {
	store store.Store
}

func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

// RegisterCode assigns (or replaces) a referrer's invite code.
func (r *Registry) RegisterCode(ctx context.Context, userId, code string) error {
	if userId == "" || code == "" {
		return fmt.Errorf("user id and code are required")
	}
	return r.store.UpsertReferralCode(ctx, userId, code)
}

// Create redeems a referral code for a new referee. A user can be referred
// once, ever, and never by themselves.
func (r *Registry) Create(ctx context.Context, referrerCode, refereeId string) (*models.Referral, error) {
	referrerId, err := r.store.FindReferralCodeOwner(ctx, referrerCode)
	if err != nil {
		return nil, err
	}
	if referrerId == refereeId {
		return nil, fmt.Errorf("%w: user %s", store.ErrSelfReferral, refereeId)
	}

	referral := &models.Referral{
		Id:           uuid.New().String(),
		ReferrerId:   referrerId,
		RefereeId:    refereeId,
		ReferralCode: referrerCode,
		Status:       models.ReferralPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.store.CreateReferral(ctx, referral); err != nil {
		return nil, err
	}
	return referral, nil
}

// MarkCompleted flips the referral to completed on the referee's first
// qualifying action. Safe to call repeatedly; later states are untouched.
func (r *Registry) MarkCompleted(ctx context.Context, referralId string) error {
	return r.store.MarkReferralCompleted(ctx, referralId)
}

// LookupActive returns the referee's referral only while the reward engine
// may still act on it (status pending or completed). A nil referral with a
// nil error means the user simply was not referred.
func (r *Registry) LookupActive(ctx context.Context, refereeId string) (*models.Referral, error) {
	referral, err := r.store.GetActiveReferralByReferee(ctx, refereeId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return referral, nil
}

// Get returns the referral regardless of status; admin views use this.
func (r *Registry) Get(ctx context.Context, referralId string) (*models.Referral, error) {
	return r.store.GetReferral(ctx, referralId)
}

// List returns a page of referrals, newest first; admin views use this.
func (r *Registry) List(ctx context.Context, limit, offset int) ([]models.Referral, error) {
	return r.store.ListReferrals(ctx, limit, offset)
}

// OverrideStatus lets an admin move a referral forward in its lifecycle.
// Backward transitions are rejected: the state machine never rewinds.
func (r *Registry) OverrideStatus(ctx context.Context, referralId string, status models.ReferralStatus) error {
	rank, ok := statusRank[status]
	if !ok {
		return fmt.Errorf("unknown referral status %q", status)
	}

	current, err := r.store.GetReferral(ctx, referralId)
	if err != nil {
		return err
	}
	if rank < statusRank[current.Status] {
		return fmt.Errorf("cannot move referral %s from %s back to %s", referralId, current.Status, status)
	}
	if current.Status == status {
		return nil
	}

	if err := r.store.SetReferralStatus(ctx, referralId, status); err != nil {
		return err
	}
	zap.L().Info("Referral status overridden",
		zap.String("referral_id", referralId),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)))
	return nil
}

// Expire marks stale pending referrals as expired and reports how many.
func (r *Registry) Expire(ctx context.Context, olderThan time.Time) (int64, error) {
	return r.store.ExpireReferrals(ctx, olderThan)
}
