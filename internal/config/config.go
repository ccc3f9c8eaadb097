// Package config loads runtime configuration from the environment. cmd/api
// loads a .env file first, so local runs only need a file next to the
// binary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spigotlabs/spigot-api/internal/helpers"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Stage string
	Port  string

	// Roles and on-ledger identity of the pool.
	OwnerAddress string
	AgentAddress string
	PoolAddress  string

	// Payout policy.
	PolicyMode      string
	MinPercent      uint64
	MaxPercent      uint64
	Cooldown        time.Duration
	EventLogEntries int

	// Optional postgres persistence; memory stores are used when empty.
	DatabaseURL string

	// Optional ERC-20 ledger; the in-process memory ledger is used when
	// ETH_RPC_URL is empty.
	EthRPCURL      string
	TokenAddress   string
	EthPrivateKey  string
	EthChainID     int64
	SeedPoolAmount string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Stage:          getEnv("STAGE", "development"),
		Port:           getEnv("PORT", "8000"),
		OwnerAddress:   os.Getenv("OWNER_ADDRESS"),
		AgentAddress:   os.Getenv("AGENT_ADDRESS"),
		PoolAddress:    os.Getenv("POOL_ADDRESS"),
		PolicyMode:     getEnv("POLICY_MODE", "caller_amount"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		EthRPCURL:      os.Getenv("ETH_RPC_URL"),
		TokenAddress:   os.Getenv("TOKEN_ADDRESS"),
		EthPrivateKey:  os.Getenv("ETH_PRIVATE_KEY"),
		SeedPoolAmount: os.Getenv("SEED_POOL_AMOUNT"),
	}

	if !helpers.IsValidStage(cfg.Stage) {
		return nil, fmt.Errorf("STAGE must be one of production, development, test")
	}
	if cfg.OwnerAddress == "" {
		return nil, fmt.Errorf("OWNER_ADDRESS environment variable is required")
	}
	if cfg.PoolAddress == "" {
		return nil, fmt.Errorf("POOL_ADDRESS environment variable is required")
	}

	var err error
	if cfg.MinPercent, err = getEnvUint("MIN_PERCENT", 5); err != nil {
		return nil, err
	}
	if cfg.MaxPercent, err = getEnvUint("MAX_PERCENT", 20); err != nil {
		return nil, err
	}
	cooldownSeconds, err := getEnvUint("COOLDOWN_SECONDS", 86400)
	if err != nil {
		return nil, err
	}
	cfg.Cooldown = time.Duration(cooldownSeconds) * time.Second

	entries, err := getEnvUint("EVENT_LOG_ENTRIES", 1024)
	if err != nil {
		return nil, err
	}
	cfg.EventLogEntries = int(entries)

	chainID, err := getEnvUint("ETH_CHAIN_ID", 1)
	if err != nil {
		return nil, err
	}
	cfg.EthChainID = int64(chainID)

	if cfg.EthRPCURL != "" && cfg.TokenAddress == "" {
		return nil, fmt.Errorf("TOKEN_ADDRESS is required when ETH_RPC_URL is set")
	}
	if cfg.EthRPCURL != "" && cfg.EthPrivateKey == "" {
		return nil, fmt.Errorf("ETH_PRIVATE_KEY is required when ETH_RPC_URL is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", key, err)
	}
	return parsed, nil
}
