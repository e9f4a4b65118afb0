/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sweep runs the scheduled job that expires stale pending referrals
// and rewards. Reward processing stays request-driven; this is the only
// background loop in the system.
package sweep

import (
	"context"
	"time"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"go.uber.org/zap"
)

type Sweeper struct {
	store    store.Store
	cfg      models.SweepConfig
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSweeper(st store.Store, cfg models.SweepConfig) *Sweeper {
	return &Sweeper{
		store:    st,
		cfg:      cfg,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the periodic expiry sweep.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting expiry sweeper",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("referral_ttl", s.cfg.ReferralTTL),
		zap.Duration("reward_ttl", s.cfg.RewardTTL))
	go s.loop(ctx)
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping expiry sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Expiry sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one expiry pass. Errors are logged, never fatal: a failed pass
// is retried on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	if s.cfg.ReferralTTL > 0 {
		expired, err := s.store.ExpireReferrals(ctx, now.Add(-s.cfg.ReferralTTL))
		if err != nil {
			zap.L().Error("Failed to expire referrals", zap.Error(err))
		} else if expired > 0 {
			zap.L().Info("Expired stale referrals", zap.Int64("count", expired))
		}
	}

	if s.cfg.RewardTTL > 0 {
		expired, err := s.store.ExpireRewards(ctx, now.Add(-s.cfg.RewardTTL))
		if err != nil {
			zap.L().Error("Failed to expire rewards", zap.Error(err))
		} else if expired > 0 {
			zap.L().Info("Expired stale rewards", zap.Int64("count", expired))
		}
	}
}
