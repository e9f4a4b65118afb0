package common

import (
	"context"
	"log"
	"strings"

	"referral-rewards-go/internal/database"
	"referral-rewards-go/internal/models"
	"referral-rewards-go/internal/rules"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeDatabase opens the store and, when configured, seeds reward rules
// from the YAML rules file. Seeding is idempotent by rule name: rules whose
// name already exists are left untouched.
func InitializeDatabase(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Server.RulesFile != "" {
		if err := SeedRules(ctx, dbService, cfg.Server.RulesFile); err != nil {
			dbService.Close()
			return nil, err
		}
	}

	return dbService, nil
}

func SeedRules(ctx context.Context, db *database.Service, rulesFile string) error {
	seeded, err := rules.LoadSeedFile(rulesFile)
	if err != nil {
		return err
	}

	existing, err := db.ListRules(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Name] = true
	}

	created := 0
	for i := range seeded {
		if known[seeded[i].Name] {
			continue
		}
		if err := db.CreateRule(ctx, &seeded[i]); err != nil {
			return err
		}
		created++
	}

	zap.L().Info("Rule seed applied",
		zap.String("file", rulesFile),
		zap.Int("seeded", created),
		zap.Int("skipped", len(seeded)-created))
	return nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
