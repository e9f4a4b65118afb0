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
	"flag"
	"os"
	"os/signal"
	"syscall"

	"referral-rewards-go/internal/common"
	"referral-rewards-go/internal/config"
	"referral-rewards-go/internal/sweep"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep pass and exit instead of looping")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	sweeper := sweep.NewSweeper(dbService, cfg.Sweep)

	if *once {
		zap.L().Info("Running single sweep pass")
		sweeper.Sweep(ctx)
		return
	}

	zap.L().Info("Starting sweeper",
		zap.Duration("interval", cfg.Sweep.Interval),
		zap.Duration("referral_ttl", cfg.Sweep.ReferralTTL),
		zap.Duration("reward_ttl", cfg.Sweep.RewardTTL))

	sweeper.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping sweeper...")
	sweeper.Stop()
	zap.L().Info("Sweeper stopped gracefully")
}
