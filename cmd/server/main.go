package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/adapters/payfast"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/adapters/postgres"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/adapters/rabbitmq"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/config"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
	adminHandler "github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/handlers/admin"
	cronHandler "github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/handlers/cron"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/observability"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/scheduler"
	ledgerService "github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/ledger"
	settlementService "github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/services/settlement"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting settlement service",
		zap.String("version", "0.1.0"),
	)

	dbPool, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewSettlementMetrics(registry)

	// Wire adapters and services
	db := postgres.NewDBExecutor(dbPool)
	accounts := postgres.NewAccountRepository(db)
	transactions := postgres.NewTransactionRepository(db)
	payoutRecords := postgres.NewPayoutRepository(db)
	bookingFeed := postgres.NewBookingFeed(db)
	runReports := postgres.NewRunReportRepository(db)

	ledgerSvc := ledgerService.NewService(db, accounts, transactions, ledgerService.Config{
		AllowHoldingOverdraft: cfg.Settlement.AllowHoldingOverdraft,
		Currency:              cfg.Settlement.Currency,
	}, logger)

	var gateway ports.PayoutGateway
	if cfg.Settlement.GatewayEnabled {
		gateway = payfast.NewClient(payfast.Config{
			BaseURL:    cfg.PayFast.BaseURL,
			MerchantID: cfg.PayFast.MerchantID,
			Passphrase: cfg.PayFast.Passphrase,
			Timeout:    time.Duration(cfg.PayFast.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.PayFast.MaxRetries,
		}, nil, logger)
		logger.Info("PayFast gateway enabled", zap.String("base_url", cfg.PayFast.BaseURL))
	}

	engine := settlementService.NewEngine(
		ledgerSvc, payoutRecords, bookingFeed, gateway, runReports, metrics,
		settlementService.Config{
			FeeRate:             decimal.NewFromFloat(cfg.Settlement.FeeRate),
			MaxAttempts:         cfg.Settlement.MaxAttempts,
			ProviderConcurrency: cfg.Settlement.ProviderConcurrency,
			Currency:            cfg.Settlement.Currency,
		}, logger)

	shutdownMgr := shutdown.NewManager(logger, 30*time.Second)

	var notifier ports.Notifier
	if cfg.RabbitMQ.URL != "" {
		mq, err := rabbitmq.NewNotifier(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		shutdownMgr.RegisterNoErr("rabbitmq", mq.Close)
		notifier = mq
		logger.Info("RabbitMQ notifier enabled")
	} else {
		notifier = rabbitmq.NewLogNotifier(logger)
		logger.Info("No broker configured, run reports go to the service log")
	}

	// Drain runs after the HTTP server and scheduler stop, before the
	// broker connection and pool close
	shutdownMgr.Register("settlement-engine", engine.Drain)

	// Start the in-process cron scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(engine, notifier, scheduler.Config{
			WeeklySchedule:    cfg.Scheduler.WeeklySchedule,
			SafetyNetSchedule: cfg.Scheduler.SafetyNetSchedule,
			JobTimeout:        time.Duration(cfg.Scheduler.JobTimeoutMinutes) * time.Minute,
		}, logger)
		if err := sched.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		shutdownMgr.Register("scheduler", func(ctx context.Context) error {
			select {
			case <-sched.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	// HTTP surface: cron triggers, admin API, metrics
	settlementCron := cronHandler.NewSettlementHandler(engine, logger, cfg.Auth.CronSecret)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	router.Post("/cron/run-settlement", settlementCron.RunSettlement)
	router.Get("/cron/health", settlementCron.HealthCheck)
	router.Get("/cron/stats", settlementCron.Stats)
	router.Get("/healthz", observability.NewHealthChecker(dbPool).Handler())
	router.Mount("/admin", adminHandler.NewRouter(engine, ledgerSvc, cfg.Auth.AdminSecret, logger))
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownMgr.RegisterHTTPServer("http", httpServer)

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	shutdownMgr.WaitForShutdown()
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger
}

func initDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Connection pool configured",
		zap.Int32("max_conns", cfg.Database.MaxConns),
		zap.Int32("min_conns", cfg.Database.MinConns),
	)
	return pool, nil
}
