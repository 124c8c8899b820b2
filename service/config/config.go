package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Networks the wallet can target.
const (
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"
)

var defaultRPCURLs = map[string]string{
	NetworkDevnet:  "https://api.devnet.solana.com",
	NetworkMainnet: "https://api.mainnet-beta.solana.com",
}

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string
	// AllowedOrigins lists browser origins allowed for CORS and websocket
	// upgrades. "*" allows any origin; empty allows same-origin only.
	AllowedOrigins []string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration
	SolanaNetwork string
	SolanaRPCURLs []string

	// Custodian: exactly one of these is set.
	CustodianKeypairPath string
	CustodianURL         string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Confirmation polling
	ConfirmTimeout     time.Duration
	ConfirmMinInterval time.Duration
	ConfirmMaxInterval time.Duration

	// Quote polling
	QuoteAPIURL      string
	QuoteInterval    time.Duration
	QuoteSlippageBps int
	// QuoteRelayPairs are published to NATS by the worker.
	QuoteRelayPairs []QuotePair
}

// QuotePair is a quote subscription parsed from FROM:TO:AMOUNT.
type QuotePair struct {
	From   string
	To     string
	Amount string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	cfg.SolanaNetwork = strings.ToLower(getEnvOrDefault("SOLANA_NETWORK", NetworkDevnet))
	defaultRPC, ok := defaultRPCURLs[cfg.SolanaNetwork]
	if !ok {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be %q or %q, got %q", NetworkDevnet, NetworkMainnet, cfg.SolanaNetwork))
	}
	cfg.SolanaRPCURLs = splitList(getEnvOrDefault("SOLANA_RPC_URL", defaultRPC))
	if len(cfg.SolanaRPCURLs) == 0 && ok {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// Custodian configuration
	cfg.CustodianKeypairPath = os.Getenv("CUSTODIAN_KEYPAIR_PATH")
	cfg.CustodianURL = os.Getenv("CUSTODIAN_URL")
	switch {
	case cfg.CustodianKeypairPath == "" && cfg.CustodianURL == "":
		errs = append(errs, fmt.Errorf("one of CUSTODIAN_KEYPAIR_PATH or CUSTODIAN_URL is required"))
	case cfg.CustodianKeypairPath != "" && cfg.CustodianURL != "":
		errs = append(errs, fmt.Errorf("CUSTODIAN_KEYPAIR_PATH and CUSTODIAN_URL are mutually exclusive"))
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solwallet-operations")

	// Confirmation polling
	if d, err := parseDuration("CONFIRM_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = d
	}
	if d, err := parseDuration("CONFIRM_MIN_INTERVAL", "500ms"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMinInterval = d
	}
	if d, err := parseDuration("CONFIRM_MAX_INTERVAL", "4s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMaxInterval = d
	}
	if cfg.ConfirmMinInterval > cfg.ConfirmMaxInterval {
		errs = append(errs, fmt.Errorf("CONFIRM_MIN_INTERVAL (%v) cannot be greater than CONFIRM_MAX_INTERVAL (%v)",
			cfg.ConfirmMinInterval, cfg.ConfirmMaxInterval))
	}

	// Quote polling
	cfg.QuoteAPIURL = getEnvOrDefault("QUOTE_API_URL", "https://quote-api.jup.ag")
	if d, err := parseDuration("QUOTE_INTERVAL", "10s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.QuoteInterval = d
	}
	if bps, err := parseInt("QUOTE_SLIPPAGE_BPS", 50); err != nil {
		errs = append(errs, err)
	} else if bps < 0 || bps > 10000 {
		errs = append(errs, fmt.Errorf("QUOTE_SLIPPAGE_BPS must be between 0 and 10000, got %d", bps))
	} else {
		cfg.QuoteSlippageBps = bps
	}

	for _, entry := range splitList(os.Getenv("QUOTE_RELAY_PAIRS")) {
		pair, err := parseQuotePair(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cfg.QuoteRelayPairs = append(cfg.QuoteRelayPairs, pair)
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if _, ok := defaultRPCURLs[c.SolanaNetwork]; !ok {
		errs = append(errs, fmt.Errorf("SolanaNetwork %q is not supported", c.SolanaNetwork))
	}

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if (c.CustodianKeypairPath == "") == (c.CustodianURL == "") {
		errs = append(errs, fmt.Errorf("exactly one of CustodianKeypairPath or CustodianURL is required"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be positive"))
	}

	if c.ConfirmMinInterval > c.ConfirmMaxInterval {
		errs = append(errs, fmt.Errorf("ConfirmMinInterval cannot be greater than ConfirmMaxInterval"))
	}

	if c.QuoteInterval < time.Second {
		errs = append(errs, fmt.Errorf("QuoteInterval must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// IsMainnet reports whether the configuration targets mainnet.
func (c *Config) IsMainnet() bool {
	return c.SolanaNetwork == NetworkMainnet
}

// DefaultRPCURL returns the public RPC endpoint for a network.
func DefaultRPCURL(network string) string {
	return defaultRPCURLs[strings.ToLower(network)]
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseQuotePair(entry string) (QuotePair, error) {
	parts := strings.Split(entry, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return QuotePair{}, fmt.Errorf("QUOTE_RELAY_PAIRS: entry %q must be FROM:TO:AMOUNT", entry)
	}
	return QuotePair{From: parts[0], To: parts[1], Amount: parts[2]}, nil
}
