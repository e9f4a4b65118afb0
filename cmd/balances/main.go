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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"referral-rewards-go/internal/common"
	"referral-rewards-go/internal/config"
	"referral-rewards-go/internal/database"
	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/store"

	"go.uber.org/zap"
)

func sign(kind models.EntryKind) string {
	if kind == models.EntryOutcome {
		return "-"
	}
	return "+"
}

func printEntry(entry models.WalletEntry, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	verified := "unverified"
	if entry.VerifiedAt != nil {
		verified = entry.VerifiedAt.Format("2006-01-02 15:04:05")
	}

	fmt.Printf("%s %-10s %s%15s  [%s]  %-20s verified: %s\n",
		symbol,
		entry.Status,
		sign(entry.Kind),
		common.FormatAmount(entry.Amount),
		entry.CreatedAt.Format("2006-01-02 15:04:05"),
		entry.Tag,
		verified)
}

func printStatement(ownerId string, balance int64, snapshot *models.BalanceSnapshot, entries []models.WalletEntry) {
	fmt.Printf("\n┌─ Wallet: %s\n", ownerId)
	fmt.Printf("│  Derived balance: %s\n", common.FormatAmount(balance))
	if snapshot != nil {
		fmt.Printf("│  Latest snapshot: %s (taken %s)\n",
			common.FormatAmount(snapshot.Amount),
			snapshot.CreatedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("│  Latest snapshot: none")
	}
	fmt.Printf("│  Entries shown: %d\n", len(entries))

	for i, entry := range entries {
		printEntry(entry, i == len(entries)-1)
	}
}

func runStatement(ctx context.Context, dbService *database.Service, ownerId string, limit int) error {
	balance, err := dbService.Balance(ctx, ownerId)
	if err != nil {
		return fmt.Errorf("failed to derive balance: %w", err)
	}

	snapshot, err := dbService.LatestSnapshot(ctx, ownerId)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	entries, err := dbService.ListEntries(ctx, ownerId, limit, 0)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	printStatement(ownerId, balance, snapshot, entries)
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ownerFlag := flag.String("owner", "", "Wallet owner ID to report on (required)")
	limitFlag := flag.Int("limit", 50, "Maximum number of ledger entries to show")
	flag.Parse()

	if *ownerFlag == "" {
		logger.Fatal("Missing required -owner flag")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	common.PrintHeader("WALLET STATEMENT", common.DefaultWidth)

	if err := runStatement(ctx, dbService, *ownerFlag, *limitFlag); err != nil {
		logger.Fatal("Failed to generate statement",
			zap.String("owner_id", *ownerFlag),
			zap.Error(err))
	}

	common.PrintFooter(fmt.Sprintf("STATEMENT FOR %s COMPLETE", *ownerFlag), common.DefaultWidth)
}
