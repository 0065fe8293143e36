package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/cache"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/emag"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/migration"
	"github.com/erp/marketsync/internal/infrastructure/persistence"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"github.com/erp/marketsync/internal/interfaces/http/handler"
	"github.com/erp/marketsync/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration (.env, config.toml, ERP_* environment)
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(baseLog)

	ctx := context.Background()

	// Telemetry
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogExportEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	log := loggerProvider.Bridge(baseLog, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting marketplace sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := runMigrations(db, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	meter := meterProvider.Meter("github.com/erp/marketsync")
	dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to create database metrics", zap.Error(err))
	}
	if err := dbMetrics.Register(db.DB); err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	dbMetrics.StartPoolStatsCollection(ctx)
	defer dbMetrics.Stop()

	// Repositories
	recordRepo := persistence.NewGormProductRecordRepository(db.DB)
	runRepo := persistence.NewGormSyncRunRepository(db.DB)
	pnkRepo := persistence.NewGormPNKFactRepository(db.DB)
	snapshotRepo := persistence.NewGormCompetitionSnapshotRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Sync lock (Redis when enabled, in-memory otherwise)
	locker, err := cache.NewSyncLockerFactory(cfg.Redis, cache.WithLogger(log)).CreateLocker()
	if err != nil {
		log.Fatal("Failed to create sync locker", zap.Error(err))
	}
	if closer, ok := locker.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Warn("Error closing sync locker", zap.Error(err))
			}
		}()
	}

	// Marketplace API client
	emagClient, err := emag.NewClient(emag.NewConfig(cfg.Emag), emag.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create marketplace client", zap.Error(err))
	}

	// Application services
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	strategy, err := marketplace.ParseConflictStrategy(cfg.Sync.Strategy)
	if err != nil {
		log.Fatal("Invalid sync strategy", zap.Error(err))
	}

	retry := marketplace.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Sync.RetryAttempts
	if len(cfg.Sync.RetryDelays) > 0 {
		retry.Delays = cfg.Sync.RetryDelays
	}

	policy := marketplace.Policy{
		TransferCap:           cfg.Analysis.TransferCap,
		LowStockThreshold:     cfg.Analysis.LowStockThreshold,
		OptimizationFloor:     cfg.Analysis.OptimizationFloor,
		StaleAfter:            cfg.Analysis.StaleAfter,
		DonorReserve:          cfg.Analysis.DonorReserve,
		HighCompetitionOffers: cfg.Analysis.HighCompetitionOffers,
		RankAlert:             cfg.Analysis.RankAlert,
		NewCompetitorAlert:    cfg.Analysis.NewCompetitorAlert,
	}

	syncService := marketsync.NewSyncService(emagClient, txScope, runRepo, locker, log,
		marketsync.WithRetryPolicy(retry),
		marketsync.WithSyncDefaults(marketsync.SyncDefaults{
			PageSize:  cfg.Sync.PageSize,
			MaxPages:  cfg.Sync.MaxPages,
			Timeout:   cfg.Sync.Timeout,
			PageDelay: cfg.Sync.PageDelay,
			LockTTL:   cfg.Sync.LockTTL,
			Strategy:  strategy,
		}),
		marketsync.WithMetrics(syncMetrics),
		marketsync.WithTracer(tracerProvider.Tracer("github.com/erp/marketsync/sync")),
	)
	analysisService := marketsync.NewAnalysisService(recordRepo, policy, log,
		marketsync.WithAnalysisMetrics(syncMetrics),
	)
	relationshipService := marketsync.NewRelationshipService(recordRepo, pnkRepo, snapshotRepo, policy, log)

	// Runs left RUNNING by a previous process can never finish
	recovered, err := syncService.RecoverStaleRuns(ctx, cfg.Sync.StaleRunAge)
	if err != nil {
		log.Error("Failed to recover stale sync runs", zap.Error(err))
	} else if recovered > 0 {
		log.Warn("Marked stale sync runs as failed", zap.Int("count", recovered))
	}

	// Scheduled sync
	var trigger *scheduler.SyncTrigger
	if cfg.Sync.ScheduleEnabled {
		triggerCfg := scheduler.DefaultSyncTriggerConfig()
		triggerCfg.Interval = cfg.Sync.ScheduleInterval
		trigger, err = scheduler.NewSyncTrigger(triggerCfg, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
	}

	// HTTP
	var tp trace.TracerProvider
	if tracerProvider.IsEnabled() {
		tp = otel.GetTracerProvider()
	}
	engine, err := router.NewEngine(router.EngineOptions{
		HTTP:           cfg.HTTP,
		ServiceName:    serviceName,
		Logger:         log,
		TracerProvider: tp,
		Meter:          meter,
		System:         handler.NewSystemHandler(cfg.App.Name, version, db),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	var schedule handler.ScheduleReporter
	if trigger != nil {
		schedule = trigger
	}
	router.NewRouter(engine).
		Register(handler.NewMarketplaceHandler(syncService, analysisService, relationshipService, schedule)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Error stopping sync trigger", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Warn("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runMigrations applies the embedded schema migrations to db
func runMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.SQLDB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close sqlDB, which gorm still owns
	return m.Up()
}
