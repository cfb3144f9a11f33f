package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/config"
	"github.com/shop/backend/internal/infrastructure/lock"
	"github.com/shop/backend/internal/infrastructure/logger"
	"github.com/shop/backend/internal/infrastructure/persistence"
	"github.com/shop/backend/internal/infrastructure/scheduler"
	"github.com/shop/backend/internal/infrastructure/storage"
	"github.com/shop/backend/internal/infrastructure/telemetry"
	"github.com/shop/backend/internal/interfaces/http/handler"
	"github.com/shop/backend/internal/interfaces/http/middleware"
	"github.com/shop/backend/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Settings{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = providers.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting exchange service",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", providers.Enabled()),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	instr, err := telemetry.InstrumentDB(db.DB, providers.Meter("db.client"), telemetry.DBSettings{
		Tracing:        cfg.Telemetry.DBTraceEnabled,
		TracerProvider: providers.TracerProvider(),
		LogFullSQL:     cfg.Telemetry.DBLogFullSQL,
		SlowQuery:      cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}

	// Exchange services
	sessionRepo := persistence.NewGormImportSessionRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	objects, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	priceFields, err := appexchange.NewPriceFieldMap(cfg.Exchange.PriceFields)
	if err != nil {
		log.Fatal("Invalid exchange.price_fields", zap.Error(err))
	}

	processor := appexchange.NewProcessor(scope, sessionRepo, objects, appexchange.ProcessorConfig{
		RootDir:          cfg.Exchange.RootDir,
		MaxErrors:        cfg.Exchange.MaxErrors,
		Workers:          cfg.Exchange.Workers,
		ProgressEvery:    cfg.Exchange.ProgressEvery,
		Location:         cfg.Exchange.Location(),
		MaxDocumentBytes: cfg.Exchange.MaxDocumentBytes,
		PriceFields:      priceFields,
		OrderPrefix:      cfg.Exchange.OrderPrefix,
	}, log.Named("processor"))

	var managerOpts []appexchange.SessionManagerOption
	startLock, redisClient := lock.New(ctx, cfg.Redis, cfg.Exchange, log)
	if startLock != nil {
		managerOpts = append(managerOpts, appexchange.WithStartLock(startLock))
	}
	manager := appexchange.NewSessionManager(scope, sessionRepo, processor, appexchange.SessionManagerConfig{
		StaleAfter:  cfg.Exchange.StaleAfter,
		StaleAction: cfg.Exchange.StaleAction,
	}, log.Named("sessions"), managerOpts...)

	exporter := appexchange.NewOrderExporter(scope, objects, appexchange.OrderExporterConfig{
		OrderPrefix:   cfg.Exchange.OrderPrefix,
		Limit:         cfg.Exchange.ExportLimit,
		SkipCancelled: cfg.Exchange.ExportSkipCancelled,
		Location:      cfg.Exchange.Location(),
	}, shared.SystemClock, log.Named("export"))

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:            providers.Meter(cfg.Telemetry.ServiceName),
		Logger:           log,
		SessionsProvider: sessionRepo,
	})
	if err != nil {
		log.Warn("Sync metrics disabled", zap.Error(err))
	} else {
		processor.SetMetrics(syncMetrics)
		exporter.SetMetrics(syncMetrics)
		syncMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.ConfigFromSettings(cfg.Scheduler), manager, log.Named("scheduler"),
			scheduler.WithOrderExporter(exporter))
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// HTTP
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        newEngine(cfg, log, providers, db, manager, exporter),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown", zap.Error(err))
		}
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error("Running sessions did not stop in time", zap.Error(err))
	}
	if syncMetrics != nil {
		syncMetrics.Stop()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close", zap.Error(err))
		}
	}
	if err := instr.Close(); err != nil {
		log.Error("Database instrumentation close", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Database close", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown", zap.Error(err))
	}
	log.Info("Stopped")
}

func newEngine(
	cfg *config.Config,
	log *zap.Logger,
	providers *telemetry.Providers,
	db handler.Pinger,
	sessions handler.SessionService,
	exports handler.OrderExportService,
) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     providers.Enabled(),
		}),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log, logger.WithQuietPaths("/health")),
		logger.Recovery(log),
		middleware.HTTPMetrics(providers.Meter("http.server")),
		middleware.Secure(),
		middleware.BodyLimit(middleware.DefaultBodyLimit),
	)

	router.NewRouter(engine).
		RegisterRoot(handler.NewHealthHandler(db, version)).
		Register(handler.NewExchangeHandler(sessions, exports, cfg.Exchange.ExportCompress)).
		Setup()
	return engine
}
