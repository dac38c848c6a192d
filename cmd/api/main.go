package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon-engine/internal/config"
	"coupon-engine/internal/database"
	"coupon-engine/internal/events"
	"coupon-engine/internal/handler"
	"coupon-engine/internal/importer"
	"coupon-engine/internal/lock"
	"coupon-engine/internal/metrics"
	"coupon-engine/internal/repository"
	"coupon-engine/internal/router"
	"coupon-engine/internal/service"
	"coupon-engine/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting coupon-engine API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repository, optionally behind the per-code redemption lock
	couponRepo := repository.NewCouponRepository(pool, logger)

	if cfg.Redis.Enabled {
		redisClient, err := newRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		locker := lock.NewRedisLocker(
			redisClient,
			"coupon-engine",
			time.Duration(cfg.Redis.LockTTL)*time.Millisecond,
			time.Duration(cfg.Redis.LockWait)*time.Millisecond,
			logger,
		)
		couponRepo = repository.NewLockingCouponRepository(couponRepo, locker, logger)
	} else {
		logger.Info().Msg("redemption lock disabled, relying on transactional check")
	}

	// Initialize redemption event publisher
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("redemption events enabled")
	} else {
		publisher = events.NewNopPublisher()
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Initialize metrics
	registry := metrics.NewRegistry()
	appMetrics := metrics.New(registry)

	// Initialize service
	couponService := service.NewCouponService(couponRepo, publisher, appMetrics, logger)

	// Import coupon definitions with S3 and local fallback
	if len(cfg.Import.Paths) > 0 {
		if err := importCoupons(ctx, cfg, couponService, appMetrics, logger); err != nil {
			return fmt.Errorf("failed to import coupons: %w", err)
		}
	}

	// Initialize HTTP handler and router
	couponHandler := handler.NewCouponHandler(couponService, logger)
	mux := router.New(couponHandler, metrics.Handler(registry), cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newRedisClient connects to Redis and verifies the connection.
func newRedisClient(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("redis connection established")

	return client, nil
}

// importCoupons creates the coupons described by the configured definition files.
func importCoupons(
	ctx context.Context,
	cfg *config.Config,
	creator importer.Creator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) error {
	fileLoader := importer.NewFileLoader(logger)

	var s3Loader importer.Loader
	if cfg.S3.Enabled {
		loader, err := importer.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	} else {
		logger.Info().Msg("using local file system for coupon definitions (S3 disabled)")
	}

	loader := importer.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)

	_, err := importer.New(loader, creator, m, logger).Run(ctx, cfg.Import.Paths)
	return err
}
