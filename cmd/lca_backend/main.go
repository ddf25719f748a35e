package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
	"github.com/tradekit/landed_cost_app/internal/core/services"
	"github.com/tradekit/landed_cost_app/internal/handlers"
	"github.com/tradekit/landed_cost_app/internal/middleware"
	"github.com/tradekit/landed_cost_app/internal/repositories/database/pgsql"
	"github.com/tradekit/landed_cost_app/internal/repositories/datasets"
	"github.com/tradekit/landed_cost_app/pkg/config"
	"github.com/tradekit/landed_cost_app/pkg/database"
)

// @title Landed Cost API
// @version 1.0
// @description Landed-cost quoting backend: duty, VAT and surcharge computation for cross-border shipments.

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection pool (for application use)
	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.ClosePgxPool(dbPool)
	logger.Info("Database connection pool established.")

	if err := runMigrations(logger, cfg.DatabaseURL); err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	repos := pgsql.NewRepositoryContainer(dbPool)

	primaryFeed := datasets.NewHTTPFxFeed(cfg.FxPrimaryName, cfg.FxPrimaryURL, cfg.FetchTimeout)
	secondaryFeeds := make([]ports.FxFeed, 0, len(cfg.FxSecondaryURLs))
	for i, url := range cfg.FxSecondaryURLs {
		secondaryFeeds = append(secondaryFeeds, datasets.NewHTTPFxFeed(cfg.FxSecondaryNames[i], url, cfg.FetchTimeout))
	}

	serviceContainer := services.NewServiceContainer(services.Deps{
		RateStore:       repos.RateStore,
		RateWriter:      repos.RateStore,
		FxRepo:          repos.FxQuote,
		IdempotencyRepo: repos.Idempotency,
		Locker:          repos.Locker,
		Fetcher:         datasets.NewHTTPDatasetFetcher(cfg.FetchTimeout),
		PrimaryFeed:     primaryFeed,
		SecondaryFeeds:  secondaryFeeds,
		FxMaxLagDays:    cfg.FxMaxLagDays,
		FetchMaxRetries: cfg.FetchMaxRetries,
		FetchBaseDelay:  time.Second,
		QuoteCfg:        buildQuoteConfig(cfg),
	})

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Idempotency-Key"},
		ExposeHeaders:    []string{"X-Idempotent-Replay"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := limiter.New(memory.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  cfg.QuoteRateLimit,
	})
	r.Use(middleware.RateLimit(rateLimiter))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// runMigrations applies all pending "up" migrations using a temporary
// database/sql connection over the pgx stdlib driver.
func runMigrations(logger *slog.Logger, databaseURL string) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return upErr
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if upErr == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

// buildQuoteConfig assembles the destination policy surface. Threshold rules
// and VAT bases are compiled in; the env only tunes the checkout scheme and
// freshness handling.
func buildQuoteConfig(cfg *config.Config) services.QuoteConfig {
	staleDatasets := make(map[string]bool, len(cfg.StaleDatasets))
	for _, name := range cfg.StaleDatasets {
		staleDatasets[name] = true
	}

	checkoutDestinations := make(map[string]bool, len(cfg.CheckoutDestinations))
	for _, dest := range cfg.CheckoutDestinations {
		checkoutDestinations[dest] = true
	}

	return services.QuoteConfig{
		StrictFreshness:      cfg.StrictFreshness,
		StaleDatasets:        staleDatasets,
		CheckoutVATThreshold: cfg.CheckoutVATThreshold,
		CheckoutDestinations: checkoutDestinations,
		DeMinimis:            defaultDeMinimisPolicies(),
		VATBasis:             defaultVATBases(),
	}
}

// defaultDeMinimisPolicies holds the built-in threshold table. EU members
// share the 150 EUR duty relief; the US and UK carve out their own rules.
func defaultDeMinimisPolicies() map[string]domain.DeMinimisPolicy {
	euPolicy := domain.DeMinimisPolicy{
		Threshold:  decimal.NewFromInt(150),
		Currency:   "EUR",
		Basis:      domain.BasisGoodsOnly,
		Suppresses: domain.SuppressDuty,
	}

	policies := map[string]domain.DeMinimisPolicy{
		"US": {
			Threshold:  decimal.NewFromInt(800),
			Currency:   "USD",
			Basis:      domain.BasisGoodsOnly,
			Suppresses: domain.SuppressDutyAndVAT,
		},
		"GB": {
			Threshold:  decimal.NewFromInt(135),
			Currency:   "GBP",
			Basis:      domain.BasisGoodsOnly,
			Suppresses: domain.SuppressDuty,
		},
		"AU": {
			Threshold:  decimal.NewFromInt(1000),
			Currency:   "AUD",
			Basis:      domain.BasisCIF,
			Suppresses: domain.SuppressDutyAndVAT,
		},
	}
	for _, member := range euMembers {
		policies[member] = euPolicy
	}
	return policies
}

// defaultVATBases marks destinations whose import tax is charged on CIF only;
// everyone else defaults to CIF plus duty.
func defaultVATBases() map[string]domain.VATBasis {
	return map[string]domain.VATBasis{
		"CA": domain.VATOnCIF,
		"AU": domain.VATOnCIF,
		"NZ": domain.VATOnCIF,
	}
}

var euMembers = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
}
