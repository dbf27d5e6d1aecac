// Package orchestratorconfig loads the reward orchestrator's process
// configuration from environment variables using plain os.Getenv calls.
package orchestratorconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is every setting the orchestrator needs at startup. The first
// block is §6's "Environment configuration" list, read from the
// environment; the timing and rate-limiter fields are fixed defaults set by
// Load.
type Config struct {
	RPCURLs                    []string
	PrivateKeyHex              string
	ChainID                    int64
	XPContractAddress          string
	AchievementContractAddress string
	ABIDirectory               string

	RPCTimeout          time.Duration
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration

	RateLimiterMaxTokens      int
	RateLimiterRefillRate     float64
	RateLimiterRefillInterval time.Duration
}

// Load reads Config from the process environment. RPC_URL (a single
// endpoint or a comma-separated list for the failover client), PRIVATE_KEY,
// XP_CONTRACT_ADDRESS and ACHIEVEMENT_CONTRACT_ADDRESS are required.
// CHAIN_ID and ABI_DIRECTORY are optional and default to the Filecoin-EVM
// testnet (chain ID 314159) and ./abi. The timing and rate-limiter fields
// are not read from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		ChainID:                   314159,
		ABIDirectory:              "./abi",
		RPCTimeout:                10 * time.Second,
		ReceiptPollInterval:       2 * time.Second,
		ReceiptTimeout:            120 * time.Second,
		RateLimiterMaxTokens:      5,
		RateLimiterRefillRate:     1.0,
		RateLimiterRefillInterval: time.Second,
	}

	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC_URL environment variable is required")
	}
	for _, ep := range strings.Split(rpcURL, ",") {
		if trimmed := strings.TrimSpace(ep); trimmed != "" {
			cfg.RPCURLs = append(cfg.RPCURLs, trimmed)
		}
	}

	cfg.PrivateKeyHex = os.Getenv("PRIVATE_KEY")
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("PRIVATE_KEY environment variable is required")
	}

	cfg.XPContractAddress = os.Getenv("XP_CONTRACT_ADDRESS")
	if cfg.XPContractAddress == "" {
		return nil, fmt.Errorf("XP_CONTRACT_ADDRESS environment variable is required")
	}

	cfg.AchievementContractAddress = os.Getenv("ACHIEVEMENT_CONTRACT_ADDRESS")
	if cfg.AchievementContractAddress == "" {
		return nil, fmt.Errorf("ACHIEVEMENT_CONTRACT_ADDRESS environment variable is required")
	}

	if envChainID := os.Getenv("CHAIN_ID"); envChainID != "" {
		parsed, err := strconv.ParseInt(envChainID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAIN_ID: %w", err)
		}
		cfg.ChainID = parsed
	}

	if dir := os.Getenv("ABI_DIRECTORY"); dir != "" {
		cfg.ABIDirectory = dir
	}

	return cfg, nil
}

// XPAbiPath and AchievementAbiPath resolve the ABI filenames §6 names
// under the configured ABI directory.
func (c *Config) XPAbiPath() string {
	return c.ABIDirectory + "/ASLExperienceToken.json"
}

func (c *Config) AchievementAbiPath() string {
	return c.ABIDirectory + "/AchievementToken.json"
}
