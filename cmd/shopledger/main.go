package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/a4s/shopledger/internal/app"
	"github.com/a4s/shopledger/internal/catalog"
	"github.com/a4s/shopledger/internal/debt"
	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/observability"
	"github.com/a4s/shopledger/internal/platform/cache"
	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/procurement"
	"github.com/a4s/shopledger/internal/reporting"
	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
	"github.com/a4s/shopledger/jobs"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "apply embedded migrations before serving")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if (*migrateFlag || cfg.MigrateOnStart) && !app.InTestMode() {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	loc := cfg.Location()
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, inventory.ServiceConfig{
		Location: loc,
		Metrics:  metrics,
		Logger:   logger,
	})
	salesService := sales.NewService(sales.NewRepository(dbpool), auditLogger, idempotencyStore, sales.ServiceConfig{
		Location: loc,
		Metrics:  metrics,
		Logger:   logger,
	})
	procurementService := procurement.NewService(procurement.NewRepository(dbpool), auditLogger, procurement.ServiceConfig{
		Location: loc,
		Metrics:  metrics,
		Logger:   logger,
	})
	debtService := debt.NewService(debt.NewRepository(dbpool), auditLogger, idempotencyStore, debt.ServiceConfig{
		Metrics: metrics,
		Logger:  logger,
	})
	reportingService := reporting.NewService(reporting.NewRepository(dbpool), inventoryService, reporting.ServiceConfig{
		Quota:    cfg.MechanicQuota,
		Location: loc,
		Logger:   logger,
	})

	redisOpts := cfg.AsynqRedis()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService, loc),
		SalesHandler:       sales.NewHandler(logger, salesService, loc),
		ProcurementHandler: procurement.NewHandler(logger, procurementService, loc),
		DebtHandler:        debt.NewHandler(logger, debtService),
		ReportingHandler:   reporting.NewHandler(logger, reportingService, loc),
		JobHandler:         jobs.NewHandler(inspector, jobClient, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
