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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewServiceWithDB wraps an already-open handle. Used by tests running
// against in-memory SQLite.
func NewServiceWithDB(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) InitSchema() error {
	schema := `
	-- Wallet Ledger: append-only income/outcome entries
	CREATE TABLE IF NOT EXISTS wallet_entries (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('income', 'outcome')),
		amount INTEGER NOT NULL CHECK (amount > 0),
		tag TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		verified_at TIMESTAMP,
		verified_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_entries_owner ON wallet_entries(owner_id, kind, status);
	CREATE INDEX IF NOT EXISTS idx_wallet_entries_created_at ON wallet_entries(created_at);

	-- Balance Snapshots: append-only cached observations, never authoritative
	CREATE TABLE IF NOT EXISTS balance_snapshots (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_balance_snapshots_owner ON balance_snapshots(owner_id, created_at);

	-- Referral codes: one code per referrer
	CREATE TABLE IF NOT EXISTS referral_codes (
		user_id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	);

	-- Referrals: one per referee, ever
	CREATE TABLE IF NOT EXISTS referrals (
		id TEXT PRIMARY KEY,
		referrer_id TEXT NOT NULL,
		referee_id TEXT NOT NULL UNIQUE,
		referral_code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_rewards INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		rewarded_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);
	CREATE INDEX IF NOT EXISTS idx_referrals_status ON referrals(status);

	-- Reward rules: admin-authored policies
	CREATE TABLE IF NOT EXISTS reward_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		action_type TEXT NOT NULL,
		service_slug TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL,
		reward_type TEXT NOT NULL,
		reward_amount INTEGER NOT NULL DEFAULT 0,
		percentage_rate TEXT NOT NULL DEFAULT '0',
		referrer_reward_amount INTEGER NOT NULL DEFAULT 0,
		referee_reward_amount INTEGER NOT NULL DEFAULT 0,
		min_amount INTEGER NOT NULL DEFAULT 0,
		max_uses_per_user INTEGER NOT NULL DEFAULT 0,
		max_total_uses INTEGER NOT NULL DEFAULT 0,
		current_total_uses INTEGER NOT NULL DEFAULT 0,
		valid_from TIMESTAMP,
		valid_until TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reward_rules_match ON reward_rules(action_type, service_slug, is_active);

	-- Issued rewards: (referral, rule, recipient, transaction) is unique; the
	-- unique index is what makes concurrent duplicate processing lose cleanly
	CREATE TABLE IF NOT EXISTS referral_rewards (
		id TEXT PRIMARY KEY,
		referral_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'wallet_credit',
		value INTEGER NOT NULL CHECK (value > 0),
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		claimed_at TIMESTAMP,
		UNIQUE(referral_id, rule_id, user_id, transaction_id)
	);

	CREATE INDEX IF NOT EXISTS idx_referral_rewards_user ON referral_rewards(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_referral_rewards_tuple ON referral_rewards(referral_id, rule_id, transaction_id);
	CREATE INDEX IF NOT EXISTS idx_referral_rewards_status ON referral_rewards(status, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
