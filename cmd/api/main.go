package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"amethyst-storefront/config"
	httpHandler "amethyst-storefront/internal/adapter/http/handler"
	"amethyst-storefront/internal/adapter/storage/memory"
	pgStorage "amethyst-storefront/internal/adapter/storage/postgres"
	redisStorage "amethyst-storefront/internal/adapter/storage/redis"
	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/internal/service"
	"amethyst-storefront/internal/worker"
	"amethyst-storefront/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("AMS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Msg("Starting Amethyst Storefront payments")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checkers []ports.HealthChecker

	// Order gateway
	var orders ports.OrderRepository
	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory order store; data is lost on restart")
		orders = memory.NewOrderRepo()
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool, log); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate database")
			}
		}
		orders = pgStorage.NewOrderRepo(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	default:
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("Unknown database driver")
	}

	// Redis-backed stores are optional; nil interfaces disable each feature.
	var (
		rateCache      ports.RateCache
		sweepLease     ports.SweepLease
		explorerBudget ports.ExplorerBudget
		rateLimitStore *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		rateCache = redisStorage.NewRateCache(rdb)
		sweepLease = redisStorage.NewSweepLease(rdb)
		if cfg.Explorers.BudgetPerMinute > 0 {
			explorerBudget = redisStorage.NewExplorerBudget(rateLimitStore, cfg.Explorers.BudgetPerMinute)
		}
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no rate cache, sweep lease, explorer budget or HTTP rate limiting")
	}

	clk := clock.NewSystem()

	oracle, err := buildRateOracle(cfg.Rates, rateCache, clk, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate oracle")
	}
	scanner := buildLedgerScanner(cfg.Explorers, cfg.Payment, explorerBudget, log)

	paymentSvc := service.NewPaymentService(orders, oracle, service.PaymentOptions{
		Addresses:          walletAddresses(cfg.Wallet),
		ExclusiveAddresses: cfg.Wallet.ExclusiveAddresses,
		BindingTTL:         cfg.Payment.BindingTTL,
	}, clk, logger.Component(log, "payments"))

	reconSvc := service.NewReconciliationService(orders, scanner, sweepLease, service.ReconciliationOptions{
		BindingTTL:  cfg.Payment.BindingTTL,
		Concurrency: cfg.Sweep.Concurrency,
		BatchSize:   cfg.Sweep.BatchSize,
		LeaseTTL:    cfg.Sweep.LeaseTTL,

		ExclusiveAddresses: cfg.Wallet.ExclusiveAddresses,
	}, clk, logger.Component(log, "reconciler"))

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT secret not set; the sweep endpoint rejects every token")
	}

	// Background sweeper
	if cfg.Sweep.Enabled {
		sweeper := worker.NewSweeper(reconSvc, cfg.Sweep.Interval, logger.Component(log, "sweeper"))
		go sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Load OpenAPI spec for the docs page
	specBytes, err := os.ReadFile("api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, /docs will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		ReconSvc:       reconSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		OpenAPISpec:    specBytes,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
