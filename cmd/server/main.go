package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/greenops/binsight/internal/config"
	domainservice "github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/internal/infrastructure/events"
	"github.com/greenops/binsight/internal/infrastructure/monitoring"
	"github.com/greenops/binsight/internal/infrastructure/persistence/postgres"
	redisconn "github.com/greenops/binsight/internal/infrastructure/persistence/redis"
	"github.com/greenops/binsight/internal/infrastructure/ratelimit"
	"github.com/greenops/binsight/internal/interfaces/http/handlers"
	"github.com/greenops/binsight/internal/interfaces/http/router"
	"github.com/greenops/binsight/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	tracing, err := monitoring.NewTracingManager(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Error(ctx, "Failed to initialize tracing", err)
		return
	}
	defer func() { _ = tracing.Shutdown(context.Background()) }()

	db, err := postgres.NewDBConnection(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error(ctx, "Failed to connect to database", err)
		return
	}
	defer func() { _ = db.Close() }()

	metrics := monitoring.NewMetrics()
	binRepo := postgres.NewBinRepository(db.DB(), appLogger)

	// The limiter backend is selected by config; redis shares counters
	// across replicas, memory keeps them per process.
	var limiter domainservice.RateLimitService
	var redisConn *redisconn.Connection
	if cfg.RateLimit.Backend == "redis" {
		redisConn, err = redisconn.NewConnection(ctx, cfg.Redis, appLogger)
		if err != nil {
			appLogger.Error(ctx, "Failed to connect to redis", err)
			return
		}
		defer func() { _ = redisConn.Close() }()
		limiter = ratelimit.NewRedisLimiter(redisConn.Client(), cfg.RateLimit, appLogger)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit, appLogger)
	}

	var publisher domainservice.EventPublisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, appLogger)
		defer func() { _ = kafkaPublisher.Close() }()
		publisher = kafkaPublisher
	}

	feed := domainservice.NewAlertFeed(cfg.Engine.AlertFeedCapacity)
	engine := domainservice.NewBinStateEngine(cfg.Engine, binRepo, feed, publisher, metrics, appLogger)
	if err := engine.LoadBins(ctx); err != nil {
		appLogger.Error(ctx, "Failed to load bin state", err)
		return
	}

	healthChecks := map[string]handlers.Pinger{
		"database": db,
	}
	if redisConn != nil {
		healthChecks["redis"] = redisConn
	}

	r := router.NewRouter(cfg, appLogger, router.Handlers{
		Telemetry: handlers.NewTelemetryHandler(engine, appLogger),
		Bin:       handlers.NewBinHandler(engine, appLogger),
		Alert:     handlers.NewAlertHandler(feed, appLogger),
		Analytics: handlers.NewAnalyticsHandler(binRepo, appLogger),
		Health:    handlers.NewHealthHandler(healthChecks, appLogger),
	}, limiter, metrics, tracing.Tracer())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return r.Start(groupCtx) })
	group.Go(func() error { return engine.Run(groupCtx) })

	if err := group.Wait(); err != nil && err != context.Canceled {
		appLogger.Error(context.Background(), "Service exited with error", err)
		return
	}
	appLogger.Info(context.Background(), "Service stopped")
}
