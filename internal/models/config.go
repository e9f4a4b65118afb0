package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sweep    SweepConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr            string
	JWTSecret       string
	RulesFile       string // optional YAML rule seed, empty disables seeding
	ShutdownTimeout time.Duration
}

// SweepConfig holds settings for the stale referral/reward expiry job
type SweepConfig struct {
	Interval    time.Duration
	ReferralTTL time.Duration
	RewardTTL   time.Duration
}
