package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/halisi-erp/halisi-erp/internal/app"
	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/observability"
	"github.com/halisi-erp/halisi-erp/internal/payments/billpay"
	"github.com/halisi-erp/halisi-erp/internal/payments/commission"
	"github.com/halisi-erp/halisi-erp/internal/payments/expense"
	"github.com/halisi-erp/halisi-erp/internal/payments/income"
	"github.com/halisi-erp/halisi-erp/internal/platform/cache"
	"github.com/halisi-erp/halisi-erp/internal/platform/db"
	"github.com/halisi-erp/halisi-erp/internal/shared"
	"github.com/halisi-erp/halisi-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	balanceCache := cache.NewCache(redisClient, cfg.BalanceCacheTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	coaRepo := coa.NewRepository(dbpool)
	coaService := coa.NewService(coaRepo, auditLogger)
	coaHandler := coa.NewHandler(logger, coaService)

	// Posting paths resolve default nodes in-transaction, so a missing
	// default must abort startup rather than fail mid-payment.
	if err := coaService.CheckDefaults(ctx,
		coa.AccountTypeAsset,
		coa.AccountTypeLiability,
		coa.AccountTypeEquity,
		coa.AccountTypeExpense,
	); err != nil {
		logger.Error("chart of accounts defaults", slog.Any("error", err))
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	finacctRepo := finacct.NewRepository(dbpool)
	finacctService := finacct.NewService(finacctRepo, balanceCache, auditLogger, logger)
	finacctHandler := finacct.NewHandler(logger, finacctService)

	billPayRepo := billpay.NewRepository(dbpool)
	billPayService := billpay.NewService(billPayRepo, finacctService, auditLogger, metrics, logger)
	billPayHandler := billpay.NewHandler(logger, billPayService)

	expenseRepo := expense.NewRepository(dbpool)
	expenseService := expense.NewService(expenseRepo, finacctService, auditLogger, metrics, logger)
	expenseHandler := expense.NewHandler(logger, expenseService)

	incomeRepo := income.NewRepository(dbpool)
	incomeService := income.NewService(incomeRepo, finacctService, auditLogger, metrics, logger)
	incomeHandler := income.NewHandler(logger, incomeService)

	commissionRepo := commission.NewRepository(dbpool)
	commissionService := commission.NewService(commissionRepo, finacctService, auditLogger, metrics, logger)
	commissionHandler := commission.NewHandler(logger, commissionService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		COAHandler:        coaHandler,
		LedgerHandler:     ledgerHandler,
		AccountsHandler:   finacctHandler,
		BillPayHandler:    billPayHandler,
		ExpenseHandler:    expenseHandler,
		IncomeHandler:     incomeHandler,
		CommissionHandler: commissionHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
