package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	referenceapp "github.com/healthbudget/backend/internal/application/reference"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/cache"
	"github.com/healthbudget/backend/internal/infrastructure/config"
	"github.com/healthbudget/backend/internal/infrastructure/event"
	"github.com/healthbudget/backend/internal/infrastructure/lock"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/persistence"
	"github.com/healthbudget/backend/internal/infrastructure/telemetry"
	"github.com/healthbudget/backend/internal/interfaces/http/handler"
	"github.com/healthbudget/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting health budget service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

// run wires the service and blocks until ctx is cancelled or a component fails
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init log export: %w", err)
	}
	log = lp.Attach(log)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ProfileLinks:      profiler.IsEnabled(),
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		SlowQuery:  cfg.Telemetry.DBSlowQueryThresh,
		System:     dbSystem(cfg.Database.Driver),
	}, log).Register(db.DB); err != nil {
		return fmt.Errorf("register db tracing: %w", err)
	}

	planRepo := persistence.NewGormPlanRepository(db.DB)
	executionRepo := persistence.NewGormExecutionRepository(db.DB)
	templateRepo := persistence.NewGormTemplateRepository(db.DB)
	referenceRepo := persistence.NewGormReferenceRepository(db.DB)

	// Redis is only dialled when the lock or the idempotency store needs it
	var redisClient *redis.Client
	if cfg.Lock.Backend == config.LockBackendRedis || (cfg.Broker.Enabled && cfg.Event.Store == config.StoreRedis) {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			_ = redisClient.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Lock.Backend == config.LockBackendRedis {
		locker = lock.NewRedisLocker(redisClient, lock.Options{
			Expiry:     cfg.Lock.Expiry,
			Tries:      cfg.Lock.Tries,
			RetryDelay: cfg.Lock.RetryDelay,
		}, log)
	}
	log.Info("Aggregate locks ready", zap.String("backend", cfg.Lock.Backend))

	// Change facts: in-process bus, optionally forwarded to the broker
	bus := event.NewInMemoryEventBus(log)
	var forwarder *event.AMQPForwarder
	if cfg.Broker.Enabled {
		serializer := event.NewEventSerializer()
		event.RegisterBudgetEvents(serializer)

		forwarder, err = event.DialAMQPForwarder(cfg.Broker, serializer, log)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		var client redis.UniversalClient
		if redisClient != nil {
			client = redisClient
		}
		store, err := cache.NewIdempotencyStore(cfg.Event, client, log)
		if err != nil {
			return fmt.Errorf("init idempotency store: %w", err)
		}
		defer func() {
			_ = store.Close()
		}()
		bus.Subscribe(event.NewIdempotentHandler(forwarder, store, log, event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Event.IdempotencyTTL,
			Enabled: true,
		})), forwarder.EventTypes()...)
	}

	rt := budgetapp.Runtime{Locker: locker, Publisher: bus}
	if mp.IsEnabled() {
		budgetMetrics, err := telemetry.NewBudgetMetrics(mp.Meter("healthbudget/budget"), log)
		if err != nil {
			return fmt.Errorf("init budget metrics: %w", err)
		}
		budgetMetrics.StartStatusCollection(ctx, planRepo, executionRepo, cfg.Telemetry.StatusCollectInterval)
		defer budgetMetrics.Stop()
		rt.Metrics = budgetMetrics

		dbMetrics, err := telemetry.NewDBMetrics(mp.Meter("healthbudget/database"), telemetry.DBMetricsConfig{
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			return fmt.Errorf("init db metrics: %w", err)
		}
		if err := dbMetrics.Register(db.DB); err != nil {
			return fmt.Errorf("register db metrics: %w", err)
		}
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	planService := budgetapp.NewPlanService(planRepo, executionRepo, referenceRepo, rt)
	executionService := budgetapp.NewExecutionService(executionRepo, planRepo, templateRepo, rt)
	templateService := budgetapp.NewTemplateService(templateRepo, rt)
	referenceService := referenceapp.NewService(referenceRepo)

	engine, err := router.New(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		CORSOrigins:    cfg.HTTP.CORSAllowOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Tracing:        tp.IsEnabled(),
		MeterProvider:  mp,
	}, router.Handlers{
		Plan:      handler.NewPlanHandler(planService),
		Execution: handler.NewExecutionHandler(executionService),
		Template:  handler.NewTemplateHandler(templateService),
		Reference: handler.NewReferenceHandler(referenceService),
		Health:    handler.NewHealthHandler(db, version),
	}, log)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// Drain requests first so their events still reach the bus
		err := srv.Shutdown(shutdownCtx)
		if stopErr := bus.Stop(shutdownCtx); stopErr != nil {
			log.Warn("Event bus did not drain", zap.Error(stopErr))
		}
		if forwarder != nil {
			if closeErr := forwarder.Close(); closeErr != nil {
				log.Warn("Closing broker connection failed", zap.Error(closeErr))
			}
		}
		if mpErr := mp.Shutdown(shutdownCtx); mpErr != nil {
			log.Warn("Meter provider shutdown failed", zap.Error(mpErr))
		}
		if tpErr := tp.Shutdown(shutdownCtx); tpErr != nil {
			log.Warn("Tracer provider shutdown failed", zap.Error(tpErr))
		}
		if lpErr := lp.Shutdown(shutdownCtx); lpErr != nil {
			log.Warn("Logger provider shutdown failed", zap.Error(lpErr))
		}
		return err
	})

	return g.Wait()
}

func dbSystem(driver string) string {
	if driver == config.DriverSQLite {
		return "sqlite"
	}
	return "postgresql"
}
