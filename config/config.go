package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string // development | production
	JWTKey    string
	SaltRound int

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	// Custody rail (stablecoin transfers)
	CustodyApiURL        string
	CustodyApiKey        string
	CustodySecretKey     string
	CustodyWebhookSecret string

	// Onramp rail (fiat -> stablecoin)
	OnrampApiURL        string
	OnrampApiKey        string
	OnrampWebhookSecret string
	OnrampHostedURL     string // fallback redirect base when the API session mode is rejected
	OnrampNetwork       string // destination network for purchased stablecoin
	OnrampDepositAddr   string // custody deposit address credited by the onramp

	CallbackBaseURL string

	// Fee policy, consumed by the reservation engine
	TransferFeeRate decimal.Decimal // e.g. 0.015 = 1.5%
	OnrampFeeRate   decimal.Decimal // e.g. 0.01  = 1%

	// Exchange rates
	FXQuoteURL    string
	RateFreshness time.Duration
	FallbackRates map[string]decimal.Decimal // USD -> currency

	// Bridge pool
	PoolCurrency   string
	PoolMinBalance decimal.Decimal

	// Reconciliation sweep
	ReconcileAfter time.Duration
	RailTimeout    time.Duration
}

// Load initializes configuration from environment variables or defaults
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "3000"),
		Env:       getEnv("APP_ENV", "development"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "remit"),
		DBPort:     getEnv("DB_PORT", "5432"),

		CustodyApiURL:        getEnv("CUSTODY_API_URL", "https://api.sandbox.custody.io/v1"),
		CustodyApiKey:        getEnv("CUSTODY_API_KEY", ""),
		CustodySecretKey:     getEnv("CUSTODY_SECRET_KEY", ""),
		CustodyWebhookSecret: getEnv("CUSTODY_WEBHOOK_SECRET", ""),

		OnrampApiURL:        getEnv("ONRAMP_API_URL", "https://api.sandbox.onramp.money/v2"),
		OnrampApiKey:        getEnv("ONRAMP_API_KEY", ""),
		OnrampWebhookSecret: getEnv("ONRAMP_WEBHOOK_SECRET", ""),
		OnrampHostedURL:     getEnv("ONRAMP_HOSTED_URL", "https://onramp.money/main/buy"),
		OnrampNetwork:       getEnv("ONRAMP_NETWORK", "matic20"),
		OnrampDepositAddr:   getEnv("ONRAMP_DEPOSIT_ADDRESS", ""),

		CallbackBaseURL: getEnv("CALLBACK_BASE_URL", "http://localhost:3000"),

		TransferFeeRate: getEnvDecimal("TRANSFER_FEE_RATE", "0.015"),
		OnrampFeeRate:   getEnvDecimal("ONRAMP_FEE_RATE", "0.01"),

		FXQuoteURL:    getEnv("FX_QUOTE_URL", "https://open.er-api.com/v6/latest/USD"),
		RateFreshness: getEnvDuration("RATE_FRESHNESS", time.Hour),

		PoolCurrency:   getEnv("POOL_CURRENCY", "USDC"),
		PoolMinBalance: getEnvDecimal("POOL_MIN_BALANCE", "10000"),

		ReconcileAfter: getEnvDuration("RECONCILE_AFTER", 30*time.Minute),
		RailTimeout:    getEnvDuration("RAIL_TIMEOUT", 30*time.Second),
	}

	// Fallback FX table, USD based. Used only when both the cache and the
	// quote source fail.
	cfg.FallbackRates = map[string]decimal.Decimal{
		"USD":  decimal.NewFromInt(1),
		"USDC": decimal.NewFromInt(1),
		"EUR":  decimal.RequireFromString("0.92"),
		"GBP":  decimal.RequireFromString("0.79"),
		"NGN":  decimal.RequireFromString("1492.53"),
		"KES":  decimal.RequireFromString("129.20"),
		"GHS":  decimal.RequireFromString("15.60"),
		"INR":  decimal.RequireFromString("83.10"),
	}

	// Validate critical configuration
	if cfg.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if cfg.Env == "production" {
		if cfg.CustodyWebhookSecret == "" {
			log.Fatal("CUSTODY_WEBHOOK_SECRET is required in production")
		}
		if cfg.OnrampWebhookSecret == "" {
			log.Fatal("ONRAMP_WEBHOOK_SECRET is required in production")
		}
	}

	return cfg
}

// IsProduction reports whether the app runs with production hardening on.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to decimal: %v", key, err)
		return decimal.RequireFromString(defaultValue)
	}
	return d
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
