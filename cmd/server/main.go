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
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"referral-rewards-go/internal/auth"
	"referral-rewards-go/internal/common"
	"referral-rewards-go/internal/config"
	"referral-rewards-go/internal/engine"
	"referral-rewards-go/internal/referral"
	"referral-rewards-go/internal/server"
	"referral-rewards-go/internal/sweep"
	"referral-rewards-go/internal/wallet"

	"go.uber.org/zap"
)

func main() {
	noSweep := flag.Bool("no-sweep", false, "Disable the in-process stale referral/reward sweeper")
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

	zap.L().Info("Starting referral rewards server", zap.String("addr", cfg.Server.Addr))

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	registry := referral.NewRegistry(dbService)
	ledger := wallet.New(dbService)
	eng := engine.New(dbService, registry)

	router := server.New(server.Deps{
		Store:    dbService,
		Ledger:   ledger,
		Registry: registry,
		Engine:   eng,
		Verifier: auth.NewVerifier(cfg.Server.JWTSecret),
	})

	var sweeper *sweep.Sweeper
	if !*noSweep {
		sweeper = sweep.NewSweeper(dbService, cfg.Sweep)
		sweeper.Start(ctx)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		zap.L().Fatal("Server failed", zap.Error(err))
	case sig := <-sigChan:
		zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	} else {
		zap.L().Info("Server stopped gracefully")
	}

	if sweeper != nil {
		sweeper.Stop()
	}
}
