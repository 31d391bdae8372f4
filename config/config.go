package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// Required fields are validated at startup so missing configuration fails fast.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Lunef backend configuration
	BackendURL string

	// Claude configuration
	AnthropicAPIKey string
	Model           string
	MaxTokens       int64

	// Video generation pricing (off-chain estimate, display only)
	VideoCostPerSecondUSDC decimal.Decimal
}

// Load reads configuration from environment variables and validates all
// required fields. Returns an error listing every missing or invalid field.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8090")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.BackendURL = getEnvOrDefault("LUNEF_BACKEND_URL", "http://localhost:8080")

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if cfg.AnthropicAPIKey == "" {
		errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required"))
	}

	cfg.Model = getEnvOrDefault("CLAUDE_MODEL", "claude-sonnet-4-20250514")

	maxTokens := getEnvOrDefault("CLAUDE_MAX_TOKENS", "4096")
	n, err := strconv.ParseInt(maxTokens, 10, 64)
	if err != nil || n <= 0 {
		errs = append(errs, fmt.Errorf("CLAUDE_MAX_TOKENS must be a positive integer, got %q", maxTokens))
	} else {
		cfg.MaxTokens = n
	}

	costPerSecond := getEnvOrDefault("VIDEO_COST_PER_SECOND", "0.10")
	cost, err := decimal.NewFromString(costPerSecond)
	if err != nil || cost.IsNegative() {
		errs = append(errs, fmt.Errorf("VIDEO_COST_PER_SECOND must be a non-negative decimal, got %q", costPerSecond))
	} else {
		cfg.VideoCostPerSecondUSDC = cost
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
