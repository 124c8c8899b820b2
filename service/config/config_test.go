package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv() {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("CUSTODIAN_KEYPAIR_PATH", "/tmp/custodian.json")
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, NetworkDevnet, cfg.SolanaNetwork)
	assert.Equal(t, []string{"https://api.devnet.solana.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, "solwallet-operations", cfg.TemporalTaskQueue)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ConfirmMinInterval)
	assert.Equal(t, 4*time.Second, cfg.ConfirmMaxInterval)
	assert.Equal(t, "https://quote-api.jup.ag", cfg.QuoteAPIURL)
	assert.Equal(t, 10*time.Second, cfg.QuoteInterval)
	assert.Equal(t, 50, cfg.QuoteSlippageBps)
	assert.False(t, cfg.IsMainnet())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Setenv("CUSTODIAN_URL", "http://custodian:8090")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_Custodian(t *testing.T) {
	tests := []struct {
		name    string
		keypair string
		url     string
		wantErr string
	}{
		{name: "keypair", keypair: "/tmp/id.json"},
		{name: "remote", url: "http://custodian:8090"},
		{name: "neither", wantErr: "one of CUSTODIAN_KEYPAIR_PATH or CUSTODIAN_URL is required"},
		{name: "both", keypair: "/tmp/id.json", url: "http://custodian:8090", wantErr: "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer cleanupEnv()
			os.Setenv("DATABASE_URL", "postgres://localhost/test")
			if tt.keypair != "" {
				os.Setenv("CUSTODIAN_KEYPAIR_PATH", tt.keypair)
			}
			if tt.url != "" {
				os.Setenv("CUSTODIAN_URL", tt.url)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.keypair, cfg.CustodianKeypairPath)
			assert.Equal(t, tt.url, cfg.CustodianURL)
		})
	}
}

func TestLoad_Network(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SOLANA_NETWORK", "Mainnet")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsMainnet())
	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.SolanaRPCURLs)
}

func TestLoad_UnknownNetwork(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SOLANA_NETWORK", "testnet")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_NETWORK")
}

func TestLoad_RPCPool(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SOLANA_RPC_URL", "https://a.example.com, https://b.example.com,,")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.SolanaRPCURLs)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr string
	}{
		{key: "CONFIRM_TIMEOUT", value: "soon", wantErr: "invalid duration"},
		{key: "QUOTE_INTERVAL", value: "often", wantErr: "invalid duration"},
		{key: "QUOTE_SLIPPAGE_BPS", value: "fifty", wantErr: "invalid integer"},
		{key: "QUOTE_SLIPPAGE_BPS", value: "20000", wantErr: "between 0 and 10000"},
		{key: "CONFIRM_MIN_INTERVAL", value: "10s", wantErr: "cannot be greater than"},
		{key: "QUOTE_RELAY_PAIRS", value: "SOL:USDC", wantErr: "must be FROM:TO:AMOUNT"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			defer cleanupEnv()
			setRequiredEnv()
			os.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	os.Setenv("CONFIRM_TIMEOUT", "2m")
	os.Setenv("QUOTE_INTERVAL", "30s")
	os.Setenv("QUOTE_SLIPPAGE_BPS", "100")
	os.Setenv("QUOTE_RELAY_PAIRS", "SOL:USDC:1, USDC:SOL:25")
	os.Setenv("ALLOWED_ORIGINS", "https://app.example.com, http://localhost:3000")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	assert.Equal(t, 30*time.Second, cfg.QuoteInterval)
	assert.Equal(t, 100, cfg.QuoteSlippageBps)
	assert.Equal(t, []QuotePair{
		{From: "SOL", To: "USDC", Amount: "1"},
		{From: "USDC", To: "SOL", Amount: "25"},
	}, cfg.QuoteRelayPairs)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
}

func validConfig() *Config {
	return &Config{
		DatabaseURL:          "postgres://localhost/test",
		SolanaNetwork:        NetworkDevnet,
		SolanaRPCURLs:        []string{"https://api.devnet.solana.com"},
		CustodianKeypairPath: "/tmp/id.json",
		TemporalHost:         "localhost:7233",
		TemporalNamespace:    "default",
		TemporalTaskQueue:    "solwallet-operations",
		ConfirmTimeout:       time.Minute,
		ConfirmMinInterval:   500 * time.Millisecond,
		ConfirmMaxInterval:   4 * time.Second,
		QuoteInterval:        10 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DatabaseURL is required"},
		{name: "unknown network", mutate: func(c *Config) { c.SolanaNetwork = "localnet" }, wantErr: "not supported"},
		{name: "no rpc", mutate: func(c *Config) { c.SolanaRPCURLs = nil }, wantErr: "SolanaRPCURLs is required"},
		{name: "two custodians", mutate: func(c *Config) { c.CustodianURL = "http://custodian" }, wantErr: "exactly one"},
		{name: "no custodian", mutate: func(c *Config) { c.CustodianKeypairPath = "" }, wantErr: "exactly one"},
		{name: "inverted backoff", mutate: func(c *Config) { c.ConfirmMinInterval = 10 * time.Second }, wantErr: "ConfirmMinInterval cannot be greater"},
		{name: "quote interval too short", mutate: func(c *Config) { c.QuoteInterval = 100 * time.Millisecond }, wantErr: "at least 1 second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultRPCURL(t *testing.T) {
	assert.Equal(t, "https://api.devnet.solana.com", DefaultRPCURL("devnet"))
	assert.Equal(t, "https://api.mainnet-beta.solana.com", DefaultRPCURL("MAINNET"))
	assert.Empty(t, DefaultRPCURL("testnet"))
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"DATABASE_URL", "SERVER_ADDR", "METRICS_ADDR", "LOG_LEVEL", "NATS_URL",
		"SOLANA_NETWORK", "SOLANA_RPC_URL", "CUSTODIAN_KEYPAIR_PATH", "CUSTODIAN_URL",
		"TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
		"CONFIRM_TIMEOUT", "CONFIRM_MIN_INTERVAL", "CONFIRM_MAX_INTERVAL",
		"QUOTE_API_URL", "QUOTE_INTERVAL", "QUOTE_SLIPPAGE_BPS",
		"QUOTE_RELAY_PAIRS", "ALLOWED_ORIGINS",
	} {
		os.Unsetenv(key)
	}
}
