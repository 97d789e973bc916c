package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/periods"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sequence"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/opname"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/procurement/bills"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PoolConfig())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	registry := accounts.NewRegistry(accounts.NewRepository(pool), auditLogger)
	guard := periods.NewGuard(periods.NewRepository(pool), auditLogger)

	numberTemplate, err := sequence.ParseTemplate(cfg.DocNumberTemplate)
	if err != nil {
		logger.Error("parse document number template", slog.Any("error", err))
		os.Exit(1)
	}
	sequences := sequence.NewGenerator(sequence.NewRepository(pool), numberTemplate, nil)

	engine := journals.NewEngine(journals.NewRepository(pool), registry, sequences, guard, auditLogger)

	ledger := inventory.NewLedger(inventory.NewRepository(pool), auditLogger, inventory.Config{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	movements := inventory.NewMovements(ledger, engine, guard, inventory.MovementAccounts{
		Inventory:  cfg.AccountInventory,
		Adjustment: cfg.AccountAdjustment,
	})

	invoiceService := invoices.NewService(invoices.NewRepository(pool), engine, ledger, sequences, idempotencyStore, invoices.Accounts{
		Receivable: cfg.AccountReceivable,
		Revenue:    cfg.AccountRevenue,
		Inventory:  cfg.AccountInventory,
		COGS:       cfg.AccountCOGS,
	})
	billService := bills.NewService(bills.NewRepository(pool), engine, ledger, sequences, idempotencyStore, bills.Accounts{
		Payable:    cfg.AccountPayable,
		Inventory:  cfg.AccountInventory,
		Expense:    cfg.AccountExpense,
		Adjustment: cfg.AccountAdjustment,
	})
	paymentService := payments.NewService(payments.NewRepository(pool), engine, invoiceService, billService, sequences, idempotencyStore, payments.Accounts{
		Cash:       cfg.AccountCash,
		Receivable: cfg.AccountReceivable,
		Payable:    cfg.AccountPayable,
	})
	opnameService := opname.NewService(opname.NewRepository(pool), ledger, engine, sequences, idempotencyStore, opname.Accounts{
		Inventory:  cfg.AccountInventory,
		Adjustment: cfg.AccountAdjustment,
	})

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL, logger)
	reportService := reports.NewService(reports.NewRepository(pool), reportCache)

	metrics := observability.NewMetrics()

	handlers := app.NewHandlers(app.HandlerDeps{
		Logger:    logger,
		Accounts:  registry,
		Periods:   guard,
		Journals:  engine,
		Ledger:    ledger,
		Movements: movements,
		Invoices:  invoiceService,
		Bills:     billService,
		Payments:  paymentService,
		Opname:    opnameService,
		Reports:   reportService,
		Metrics:   metrics,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Handlers: handlers,
		Metrics:  metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
