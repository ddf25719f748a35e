package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	// FX feed config
	FxPrimaryName    string
	FxPrimaryURL     string
	FxSecondaryNames []string
	FxSecondaryURLs  []string
	FxMaxLagDays     int

	// Dataset fetching
	FetchTimeout    time.Duration
	FetchMaxRetries int

	// Quote engine config
	StrictFreshness      bool
	StaleDatasets        []string
	CheckoutVATThreshold decimal.Decimal
	CheckoutDestinations []string

	// Requests per minute allowed per client IP on the quote endpoint.
	QuoteRateLimit int64
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("FX_PRIMARY_NAME", "ecb")
	viper.SetDefault("FX_PRIMARY_URL", "")
	viper.SetDefault("FX_SECONDARY_NAMES", "")
	viper.SetDefault("FX_SECONDARY_URLS", "")
	viper.SetDefault("FX_MAX_LAG_DAYS", 5)
	viper.SetDefault("FETCH_TIMEOUT", "30s")
	viper.SetDefault("FETCH_MAX_RETRIES", 3)
	viper.SetDefault("STRICT_FRESHNESS", false)
	viper.SetDefault("STALE_DATASETS", "")
	viper.SetDefault("CHECKOUT_VAT_THRESHOLD", "150")
	viper.SetDefault("CHECKOUT_DESTINATIONS", "")
	viper.SetDefault("QUOTE_RATE_LIMIT", 120)

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.FxPrimaryName = viper.GetString("FX_PRIMARY_NAME")
	cfg.FxPrimaryURL = viper.GetString("FX_PRIMARY_URL")
	if cfg.FxPrimaryURL == "" {
		log.Println("Warning: FX_PRIMARY_URL environment variable not set. Fx refresh will be unavailable.")
	}
	cfg.FxSecondaryNames = splitList(viper.GetString("FX_SECONDARY_NAMES"))
	cfg.FxSecondaryURLs = splitList(viper.GetString("FX_SECONDARY_URLS"))
	if len(cfg.FxSecondaryNames) != len(cfg.FxSecondaryURLs) {
		log.Println("Warning: FX_SECONDARY_NAMES and FX_SECONDARY_URLS have different lengths. Secondary feeds disabled.")
		cfg.FxSecondaryNames = nil
		cfg.FxSecondaryURLs = nil
	}
	cfg.FxMaxLagDays = viper.GetInt("FX_MAX_LAG_DAYS")
	if cfg.FxMaxLagDays < 0 {
		cfg.FxMaxLagDays = 0
	}

	fetchTimeoutStr := viper.GetString("FETCH_TIMEOUT")
	fetchTimeout, err := time.ParseDuration(fetchTimeoutStr)
	if err != nil {
		fetchTimeout = 30 * time.Second
		if fetchTimeoutStr != "" {
			log.Printf("Warning: Invalid value for FETCH_TIMEOUT ('%s'). Defaulting to %s.\n", fetchTimeoutStr, fetchTimeout.String())
		}
	}
	cfg.FetchTimeout = fetchTimeout
	cfg.FetchMaxRetries = viper.GetInt("FETCH_MAX_RETRIES")
	if cfg.FetchMaxRetries < 1 {
		cfg.FetchMaxRetries = 1
	}

	cfg.StrictFreshness = viper.GetBool("STRICT_FRESHNESS")
	cfg.StaleDatasets = splitList(viper.GetString("STALE_DATASETS"))

	thresholdStr := viper.GetString("CHECKOUT_VAT_THRESHOLD")
	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		threshold = decimal.NewFromInt(150)
		log.Printf("Warning: Invalid value for CHECKOUT_VAT_THRESHOLD ('%s'). Defaulting to %s.\n", thresholdStr, threshold.String())
	}
	cfg.CheckoutVATThreshold = threshold
	cfg.CheckoutDestinations = splitList(viper.GetString("CHECKOUT_DESTINATIONS"))

	cfg.QuoteRateLimit = viper.GetInt64("QUOTE_RATE_LIMIT")
	if cfg.QuoteRateLimit <= 0 {
		cfg.QuoteRateLimit = 120
	}

	return cfg, nil
}

// splitList parses a comma-separated env value into trimmed non-empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
