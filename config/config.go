package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	// Target site
	BaseURL string

	// Browser configuration
	Headless      bool
	MaxConcurrent int
	PageTimeout   time.Duration
	ActionTimeout time.Duration

	// Rate limiting
	MinDelay      time.Duration
	MaxDelay      time.Duration
	RetryAttempts int
	SafeMode      bool

	// Reconciliation
	Tolerance  decimal.Decimal
	CartPrices bool

	// Input/output
	LocationsFile string
	ExpectedFile  string
	MasterFile    string
	OutputDir     string
	SnapshotDir   string

	// Cooldown cache (optional; empty addr disables)
	MemcacheAddr string
	Cooldown     time.Duration

	// Redis publisher (optional; empty addr disables)
	RedisAddr   string
	RedisDB     int
	RedisStream string

	// Web dashboard
	WebHost      string
	WebPort      int
	JobRetention time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	maxConcurrent, _ := strconv.Atoi(getEnv("MAX_CONCURRENT", "5"))
	pageTimeout, _ := strconv.Atoi(getEnv("PAGE_TIMEOUT_MS", "30000"))
	actionTimeout, _ := strconv.Atoi(getEnv("ACTION_TIMEOUT_MS", "3000"))
	minDelay, _ := strconv.Atoi(getEnv("MIN_DELAY_MS", "3000"))
	maxDelay, _ := strconv.Atoi(getEnv("MAX_DELAY_MS", "6000"))
	retryAttempts, _ := strconv.Atoi(getEnv("RETRY_ATTEMPTS", "3"))
	cooldown, _ := strconv.Atoi(getEnv("LOCATION_COOLDOWN_SECONDS", "0"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	webPort, _ := strconv.Atoi(getEnv("WEB_PORT", "8080"))
	jobRetention, _ := strconv.Atoi(getEnv("JOB_RETENTION_SECONDS", "3600"))

	tolerance, err := decimal.NewFromString(getEnv("PRICE_TOLERANCE", "0.01"))
	if err != nil {
		tolerance = decimal.NewFromFloat(0.01)
	}

	cfg := &Config{
		BaseURL:       getEnv("BASE_URL", "https://www.panago.com"),
		Headless:      getEnv("HEADLESS", "true") == "true",
		MaxConcurrent: maxConcurrent,
		PageTimeout:   time.Duration(pageTimeout) * time.Millisecond,
		ActionTimeout: time.Duration(actionTimeout) * time.Millisecond,
		MinDelay:      time.Duration(minDelay) * time.Millisecond,
		MaxDelay:      time.Duration(maxDelay) * time.Millisecond,
		RetryAttempts: retryAttempts,
		SafeMode:      getEnv("SAFE_MODE", "true") == "true",
		Tolerance:     tolerance,
		CartPrices:    getEnv("CART_PRICES", "false") == "true",
		LocationsFile: getEnv("LOCATIONS_FILE", "config/locations.yaml"),
		ExpectedFile:  getEnv("EXPECTED_PRICES_FILE", "input/expected_prices.xlsx"),
		MasterFile:    getEnv("MASTER_DOCUMENT_FILE", ""),
		OutputDir:     getEnv("OUTPUT_DIR", "./output"),
		SnapshotDir:   getEnv("SNAPSHOT_DIR", "./debug"),
		MemcacheAddr:  getEnv("MEMCACHE_ADDR", ""),
		Cooldown:      time.Duration(cooldown) * time.Second,
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisDB:       redisDB,
		RedisStream:   getEnv("REDIS_STREAM", "pricerecords"),
		WebHost:       getEnv("WEB_HOST", "0.0.0.0"),
		WebPort:       webPort,
		JobRetention:  time.Duration(jobRetention) * time.Second,
		Environment:   getEnv("PRICEVALIDATOR_ENVIRONMENT", "development"),
	}

	return cfg
}

// ApplySafeMode clamps concurrency and widens delays to protect the site.
// Called after CLI flags have been laid over the environment values, so an
// explicit --safe-mode=false keeps the configured concurrency.
func (c *Config) ApplySafeMode() {
	if !c.SafeMode {
		return
	}
	c.MaxConcurrent = 1
	if c.MinDelay < 5*time.Second {
		c.MinDelay = 5 * time.Second
	}
	if c.MaxDelay < 10*time.Second {
		c.MaxDelay = 10 * time.Second
	}
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL must not be empty")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("invalid delay window: min=%s max=%s", c.MinDelay, c.MaxDelay)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", c.RetryAttempts)
	}
	if c.Tolerance.IsNegative() {
		return fmt.Errorf("PRICE_TOLERANCE must not be negative, got %s", c.Tolerance)
	}
	if c.PageTimeout <= 0 || c.ActionTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
