package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"
)

// Config holds all engine configuration. Values parameterize the
// algorithms only; no business logic lives here.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	RPCURL           string
	ChainID          int64
	WalletPrivateKey string // hex, no 0x prefix
	ExecutorContract string // flash-loan entry contract address

	// Execution
	ExecutionMode           string // "paper" or "live"
	MaxConcurrentExecutions int
	ExecutionTimeout        time.Duration
	MaxRetries              int
	ConfirmPollInterval     time.Duration

	// Gas
	MaxGasPriceGwei     float64
	GasSafetyBuffer     float64 // multiplier on raw estimates
	GasQuoteTTL         time.Duration
	PriorityFeeBoost    float64 // EIP-1559 tip multiplier
	MaxGasCostPercent   float64 // reject if gasCost/grossProfit exceeds this
	NativeTokenPriceUSD float64 // for converting gas cost to USD

	// Profit
	MinProfitAfterGasUSD float64
	MEVLeakFactor        float64 // fraction of gross profit assumed lost to MEV

	// Flash loans
	LargeNotionalThresholdUSD float64
	LiquiditySnapshot         string // "source:token:amount,..." seed for venue liquidity tables
	HybridEligibleTokens      string // comma-separated token addresses with a deep flash-swap leg

	// Recovery
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	GasBumpFactor    float64
	MaxGasBumps      int
	CongestionDelay  time.Duration

	// Circuit breaker
	ConsecutiveFailureLimit int
	MaxLossWindowUSD        float64
	LossWindow              time.Duration

	// Position limits
	MaxPositionSizeUSD  float64
	MaxTotalExposureUSD float64

	// Wallet
	BalancePollInterval   time.Duration
	MinNativeBalanceEther float64 // warn when the gas balance drops below this

	// Health monitoring
	HealthCheckInterval    time.Duration
	HealthWindowSize       int
	AnomalyDeviationFactor float64

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Chain defaults
		RPCURL:           getEnvOrDefault("RPC_URL", "http://localhost:8545"),
		ChainID:          int64(getIntOrDefault("CHAIN_ID", 42161)),
		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		ExecutorContract: os.Getenv("EXECUTOR_CONTRACT"),

		// Execution defaults
		ExecutionMode:           getEnvOrDefault("EXECUTION_MODE", "paper"),
		MaxConcurrentExecutions: getIntOrDefault("MAX_CONCURRENT_EXECUTIONS", 3),
		ExecutionTimeout:        getDurationOrDefault("EXECUTION_TIMEOUT", 45*time.Second),
		MaxRetries:              getIntOrDefault("MAX_RETRIES", 3),
		ConfirmPollInterval:     getDurationOrDefault("CONFIRM_POLL_INTERVAL", 2*time.Second),

		// Gas defaults
		MaxGasPriceGwei:     getFloat64OrDefault("MAX_GAS_PRICE_GWEI", 300.0),
		GasSafetyBuffer:     getFloat64OrDefault("GAS_SAFETY_BUFFER", 1.2),
		GasQuoteTTL:         getDurationOrDefault("GAS_QUOTE_TTL", 3*time.Second),
		PriorityFeeBoost:    getFloat64OrDefault("PRIORITY_FEE_BOOST", 1.5),
		MaxGasCostPercent:   getFloat64OrDefault("MAX_GAS_COST_PERCENT", 0.5),
		NativeTokenPriceUSD: getFloat64OrDefault("NATIVE_TOKEN_PRICE_USD", 3000.0),

		// Profit defaults
		MinProfitAfterGasUSD: getFloat64OrDefault("MIN_PROFIT_AFTER_GAS_USD", 1.0),
		MEVLeakFactor:        getFloat64OrDefault("MEV_LEAK_FACTOR", 0.10),

		// Flash loan defaults
		LargeNotionalThresholdUSD: getFloat64OrDefault("LARGE_NOTIONAL_THRESHOLD_USD", 10_000_000.0),
		LiquiditySnapshot:         os.Getenv("LIQUIDITY_SNAPSHOT"),
		HybridEligibleTokens:      os.Getenv("HYBRID_ELIGIBLE_TOKENS"),

		// Recovery defaults
		RetryBackoffBase: getDurationOrDefault("RETRY_BACKOFF_BASE", 500*time.Millisecond),
		RetryBackoffMax:  getDurationOrDefault("RETRY_BACKOFF_MAX", 8*time.Second),
		GasBumpFactor:    getFloat64OrDefault("GAS_BUMP_FACTOR", 1.25),
		MaxGasBumps:      getIntOrDefault("MAX_GAS_BUMPS", 2),
		CongestionDelay:  getDurationOrDefault("CONGESTION_DELAY", 15*time.Second),

		// Circuit breaker defaults
		ConsecutiveFailureLimit: getIntOrDefault("CONSECUTIVE_FAILURE_LIMIT", 4),
		MaxLossWindowUSD:        getFloat64OrDefault("MAX_LOSS_WINDOW_USD", 500.0),
		LossWindow:              getDurationOrDefault("LOSS_WINDOW", 1*time.Hour),

		// Position limit defaults
		MaxPositionSizeUSD:  getFloat64OrDefault("MAX_POSITION_SIZE_USD", 100_000_000.0),
		MaxTotalExposureUSD: getFloat64OrDefault("MAX_TOTAL_EXPOSURE_USD", 250_000_000.0),

		// Wallet defaults
		BalancePollInterval:   getDurationOrDefault("BALANCE_POLL_INTERVAL", 30*time.Second),
		MinNativeBalanceEther: getFloat64OrDefault("MIN_NATIVE_BALANCE", 0.05),

		// Health defaults
		HealthCheckInterval:    getDurationOrDefault("HEALTH_CHECK_INTERVAL", 10*time.Second),
		HealthWindowSize:       getIntOrDefault("HEALTH_WINDOW_SIZE", 100),
		AnomalyDeviationFactor: getFloat64OrDefault("ANOMALY_DEVIATION_FACTOR", 3.0),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "flasharb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "flasharb123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "flasharb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// MinNativeBalanceWei converts the configured ether threshold to wei.
func (c *Config) MinNativeBalanceWei() *big.Int {
	ether := new(big.Float).SetFloat64(c.MinNativeBalanceEther)
	wei := new(big.Float).Mul(ether, big.NewFloat(1e18))
	out, _ := wei.Int(nil)

	return out
}

// MaxGasPriceWei converts the configured gwei ceiling to wei.
func (c *Config) MaxGasPriceWei() *big.Int {
	gwei := new(big.Float).SetFloat64(c.MaxGasPriceGwei)
	wei := new(big.Float).Mul(gwei, big.NewFloat(1e9))
	out, _ := wei.Int(nil)

	return out
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL cannot be empty")
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper' or 'live', got %q", c.ExecutionMode)
	}

	if c.ExecutionMode == "live" && c.WalletPrivateKey == "" {
		return fmt.Errorf("WALLET_PRIVATE_KEY required in live mode")
	}

	if c.MaxConcurrentExecutions <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_EXECUTIONS must be positive, got %d", c.MaxConcurrentExecutions)
	}

	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("EXECUTION_TIMEOUT must be positive")
	}

	if c.GasSafetyBuffer < 1.0 {
		return fmt.Errorf("GAS_SAFETY_BUFFER must be >= 1.0, got %f", c.GasSafetyBuffer)
	}

	if c.MaxGasCostPercent <= 0 || c.MaxGasCostPercent > 1.0 {
		return fmt.Errorf("MAX_GAS_COST_PERCENT must be in (0, 1.0], got %f", c.MaxGasCostPercent)
	}

	if c.MEVLeakFactor < 0 || c.MEVLeakFactor >= 1.0 {
		return fmt.Errorf("MEV_LEAK_FACTOR must be in [0, 1.0), got %f", c.MEVLeakFactor)
	}

	if c.GasBumpFactor <= 1.0 {
		return fmt.Errorf("GAS_BUMP_FACTOR must be > 1.0, got %f", c.GasBumpFactor)
	}

	if c.ConsecutiveFailureLimit <= 0 {
		return fmt.Errorf("CONSECUTIVE_FAILURE_LIMIT must be positive, got %d", c.ConsecutiveFailureLimit)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
