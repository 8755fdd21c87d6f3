package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const version = "1.0.0"

var _ appinv.LedgerObserver = (*telemetry.InvoiceMetrics)(nil)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	metrics, err := telemetry.NewInvoiceMetricsFromProvider(meterProvider)
	if err != nil {
		log.Fatal("Failed to create invoice metrics", zap.Error(err))
	}

	dbOpts := []persistence.DatabaseOption{
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		dbOpts = append(dbOpts, persistence.WithTracing(telemetry.NewDBTracingPlugin(dbTracing, log)))
	}

	db, err := persistence.NewDatabase(ctx, &cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	replayCache, err := cache.NewReplayCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(ctx, cfg.Idempotency)
	if err != nil {
		log.Fatal("Failed to initialize idempotency cache", zap.Error(err))
	}
	var ledgerCache appinv.ReplayCache
	if replayCache != nil {
		ledgerCache = replayCache
		defer func() {
			if err := replayCache.Close(); err != nil {
				log.Warn("Error closing idempotency cache", zap.Error(err))
			}
		}()
	}

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(metrics)
	eventBus.Subscribe(event.NewLogHandler(log))

	retryPolicy := appinv.RetryPolicy{
		MaxAttempts:     cfg.Payment.RetryAttempts,
		InitialInterval: cfg.Payment.RetryInitialInterval,
		MaxInterval:     cfg.Payment.RetryMaxInterval,
	}

	txScope := persistence.NewGormTransactionScope(db.DB)
	ledger := appinv.NewIdempotencyLedger(persistence.NewGormIdempotencyRepository(db.DB), ledgerCache, log)

	invoiceService := appinv.NewInvoiceService(txScope, persistence.NewGormInvoiceRepository(db.DB),
		appinv.WithInvoiceRetryPolicy(retryPolicy),
		appinv.WithInvoiceEventPublisher(eventBus),
		appinv.WithInvoiceObserver(metrics),
		appinv.WithInvoiceLogger(log),
	)
	paymentService := appinv.NewPaymentService(txScope, ledger,
		appinv.WithPaymentRetryPolicy(retryPolicy),
		appinv.WithPaymentEventPublisher(eventBus),
		appinv.WithLedgerObserver(metrics),
		appinv.WithPaymentLogger(log),
	)

	sweeper := scheduler.NewOverdueSweeper(invoiceService, log.Named("overdue"), scheduler.OverdueSweeperConfig{
		Enabled:    cfg.Overdue.Enabled,
		Interval:   cfg.Overdue.Interval,
		BatchSize:  cfg.Overdue.BatchSize,
		RunTimeout: cfg.Overdue.RunTimeout,
	})
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start overdue sweeper", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           cors,
	}, router.Handlers{
		Invoices: handler.NewInvoiceHandler(invoiceService),
		Payments: handler.NewPaymentHandler(paymentService),
		Health:   handler.NewHealthHandler(db, cfg.App.Name, version),
	}, log)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// stop accepting requests before the sweeper and the event bus go away
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Warn("Overdue sweeper did not stop in time", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus stop failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
