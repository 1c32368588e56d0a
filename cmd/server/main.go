package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/erp/ordersync/docs"
	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/cache"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/ecommerce"
	"github.com/erp/ordersync/internal/infrastructure/jobqueue"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/erp/ordersync/internal/interfaces/http/handler"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
	"github.com/erp/ordersync/internal/interfaces/http/router"
)

const (
	shutdownTimeout = 30 * time.Second

	// manual syncs per shop and window; the cron trigger is not limited
	syncRateLimit  = 6
	syncRateWindow = time.Minute
)

//	@title			Order Sync API
//	@version		1.0
//	@description	Marketplace order sync with recipient address change detection and geo sales reports

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Operator token. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// OTLP log export tees the zap core, so it is set up before anything logs
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log = logProvider.Bridge(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Telemetry.LogsLevel))
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.App.Version),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	meter := meterProvider.Meter("github.com/erp/ordersync")

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiler.Enabled,
		ServerAddress:     cfg.Profiler.ServerAddress,
		ApplicationName:   cfg.Profiler.ApplicationName,
		BasicAuthUser:     cfg.Profiler.BasicAuthUser,
		BasicAuthPassword: cfg.Profiler.BasicAuthPassword,
		ProfileMutex:      cfg.Profiler.ProfileMutex,
		ProfileBlock:      cfg.Profiler.ProfileBlock,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(
		logger.Component(log, "gorm"),
		logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize database metrics", zap.Error(err))
	}
	plugins := []gorm.Plugin{dbMetrics}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugins = append(plugins, telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:            true,
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
			DBName:             cfg.Database.DBName,
			IncludeVariables:   cfg.Telemetry.DBLogFullSQL,
		}, log))
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithPlugins(plugins...),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")
	if sqlDB, err := db.SQL(); err == nil {
		dbMetrics.StartPoolStatsCollection(ctx, sqlDB)
	}

	// Lock and report cache backends
	backends, err := cache.NewBackendFactory(cfg.Redis,
		cache.WithLogger(logger.Component(log, "cache")),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateBackends(ctx)
	if err != nil {
		log.Fatal("Failed to initialize cache backends", zap.Error(err))
	}

	// Repositories
	shopRepo := persistence.NewGormShopRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	historyRepo := persistence.NewGormAddressHistoryRepository(db.DB)
	geoRepo := persistence.NewGormGeoAddressRepository(db.DB)

	// Marketplace
	shopeeCfg := ecommerce.NewShopeeConfig(cfg.Marketplace.PartnerID, cfg.Marketplace.PartnerKey)
	if cfg.Marketplace.BaseURL != "" {
		shopeeCfg.BaseURL = cfg.Marketplace.BaseURL
	}
	if cfg.Marketplace.Timeout > 0 {
		shopeeCfg.Timeout = cfg.Marketplace.Timeout
	}
	clients, err := ecommerce.NewShopeeClientFactory(
		shopeeCfg,
		ecommerce.NewDatabaseTokenSource(shopRepo),
		nil,
		logger.Component(log, "shopee"),
	)
	if err != nil {
		log.Fatal("Invalid marketplace configuration", zap.Error(err))
	}

	// Application services
	masks := integration.DefaultMaskPredicate()
	if len(cfg.Address.MaskMarkers) > 0 {
		masks = integration.NewSubstringMaskPredicate(cfg.Address.MaskMarkers...)
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}
	syncService := ordersync.NewService(
		shopRepo,
		orderRepo,
		clients,
		ordersync.NewChangeDetector(historyRepo, time.Now),
		ordersync.NewGeoProjectionWriter(geoRepo, masks, time.Now),
		logger.Component(log, "order_sync"),
		ordersync.WithReportInvalidator(backends.Reports),
		ordersync.WithSyncObserver(syncMetrics),
	)
	alertService := ordersync.NewAlertService(shopRepo, orderRepo, historyRepo, logger.Component(log, "address_alerts"))
	geoSalesService := ordersync.NewGeoSalesService(shopRepo, geoRepo, backends.Reports, cfg.Report.CacheTTL, logger.Component(log, "geo_sales"))
	shopService := ordersync.NewShopService(shopRepo, logger.Component(log, "shops"))

	// Background sync
	runner := scheduler.NewOrderSyncRunner(syncService, backends.Locker, cfg.Scheduler.LockTTL, logger.Component(log, "sync_runner"))

	schedCfg := scheduler.DefaultOrderSyncSchedulerConfig()
	schedCfg.Workers = cfg.Scheduler.Workers
	schedCfg.QueueCapacity = cfg.Scheduler.QueueCapacity
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	schedCfg.MaxRetries = cfg.Scheduler.MaxRetries
	schedCfg.RetryDelay = cfg.Scheduler.RetryDelay
	syncScheduler, err := scheduler.NewOrderSyncScheduler(schedCfg, runner, logger.Component(log, "sync_scheduler"))
	if err != nil {
		log.Fatal("Invalid scheduler configuration", zap.Error(err))
	}
	if err := syncScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}

	var cronTrigger *scheduler.OrderSyncCronTrigger
	if cfg.Scheduler.Enabled && cfg.Scheduler.CronInterval > 0 {
		cronTrigger = scheduler.NewOrderSyncCronTrigger(scheduler.OrderSyncCronTriggerConfig{
			Interval:  cfg.Scheduler.CronInterval,
			RangeDays: cfg.Scheduler.DefaultRangeDays,
		}, syncScheduler, shopRepo, logger.Component(log, "sync_cron"))
		if err := cronTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync cron trigger", zap.Error(err))
		}
	}

	var queueSource *jobqueue.LmstfySource
	var queueStats func() any
	if cfg.Queue.Enabled {
		queueSource = jobqueue.NewLmstfySource(
			jobqueue.NewLmstfyClient(jobqueue.LmstfyConfig{
				Host:      cfg.Queue.Host,
				Port:      cfg.Queue.Port,
				Namespace: cfg.Queue.Namespace,
				Token:     cfg.Queue.Token,
				Queue:     cfg.Queue.Queue,
				TTR:       time.Duration(cfg.Queue.TTR) * time.Second,
				Wait:      time.Duration(cfg.Queue.PollTimeout) * time.Second,
			}),
			syncScheduler,
			logger.Component(log, "sync_queue"),
		)
		queueSource.Start(ctx)
		queueStats = func() any { return queueSource.Stats() }
	}

	// Operator auth
	tokens := auth.NewTokenService(cfg.HTTP.Auth)
	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if client := backends.RedisClient(); client != nil {
		revocations = auth.NewRedisRevocationList(client, cfg.Redis.KeyPrefix)
	}
	if !tokens.Enabled() {
		log.Warn("Operator authentication is disabled, set http.auth.secret to enable it")
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to initialize HTTP metrics", zap.Error(err))
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(corsCfg),
		middleware.SecureWithConfig(middleware.SecurityConfig{
			HSTSEnabled: cfg.App.Env == "production",
			HSTSMaxAge:  31536000,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.WriteTimeout),
		middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled),
		middleware.Profiling(profiler.IsEnabled()),
		httpMetrics,
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Version, readinessChecks(db, backends))
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	docsAccess, err := middleware.SwaggerAccess(middleware.SwaggerConfig{
		Enabled:    cfg.HTTP.Swagger.Enabled,
		AllowedIPs: cfg.HTTP.Swagger.AllowedIPs,
	})
	if err != nil {
		log.Fatal("Invalid swagger configuration", zap.Error(err))
	}
	docsChain := []gin.HandlerFunc{docsAccess}
	if cfg.HTTP.Swagger.RequireAuth {
		docsChain = append(docsChain,
			middleware.OperatorAuth(tokens, revocations, log),
			middleware.RequireScope(auth.ScopeRead),
		)
	}
	router.RegisterDocs(engine, docsChain...)

	limiter := middleware.NewRateLimiter(syncRateLimit, syncRateWindow)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.OperatorAuth(tokens, revocations, log),
		middleware.SpanEnricher(),
	)
	router.RegisterAPI(r, router.Handlers{
		Shops:       handler.NewShopHandler(shopService),
		OrderSync:   handler.NewOrderSyncHandler(runner, syncScheduler, queueStats),
		Alerts:      handler.NewAddressAlertHandler(alertService),
		GeoSales:    handler.NewGeoSalesHandler(geoSalesService),
		Maintenance: handler.NewMaintenanceHandler(alertService, revocations),
	}, middleware.RateLimitByKey(limiter, middleware.ShopKey))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop feeding jobs before draining the workers
	if cronTrigger != nil {
		if err := cronTrigger.Stop(shutdownCtx); err != nil {
			log.Warn("Error stopping sync cron trigger", zap.Error(err))
		}
	}
	if queueSource != nil {
		queueSource.Stop()
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping sync scheduler", zap.Error(err))
	}
	limiter.Stop()

	dbMetrics.Stop()
	if err := backends.Close(); err != nil {
		log.Warn("Error closing cache backends", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error flushing metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error flushing traces", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	_ = logger.Sync(log)
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error flushing logs", zap.Error(err))
	}
}

// readinessChecks pings the database, and Redis when the backends use it
func readinessChecks(db *persistence.Database, backends *cache.Backends) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": db.Ping,
	}
	if client := backends.RedisClient(); client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
