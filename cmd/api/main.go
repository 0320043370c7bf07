package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	httpadp "github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/http"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/middleware"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/oracle"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/providers"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/repository/memory"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/repository/mysql"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/config"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/cache"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/db"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/metrics"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/lifecycle"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/watcher"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("redis unavailable", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rdb.Close()

	var ledger loan.Ledger
	switch cfg.LedgerBackend {
	case "mysql":
		gdb, err := db.OpenGorm(cfg.MySQLDSN())
		if err != nil {
			logger.Error("mysql unavailable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := gdb.AutoMigrate(&loan.LoanRecord{}); err != nil {
			logger.Error("migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		ledger = mysql.NewLedger(gdb)
	default:
		ledger = memory.NewLedger()
	}

	payments := providers.NewSimulatedPayments()
	contract := providers.NewSimulatedContract()
	priceFeed := oracle.NewCachedOracle(
		providers.NewStaticOracle(),
		cache.NewPriceCache(rdb, cfg.PriceCacheTTL),
		logger,
	)

	lc := lifecycle.NewUsecase(ledger, payments, contract, priceFeed, lifecycle.Config{
		TargetLTVPercent:            cfg.TargetLTVPercent,
		LiquidationThresholdPercent: cfg.LiquidationThresholdPercent,
		CollaboratorTimeout:         cfg.CollaboratorTimeout,
		HoldDuration:                cfg.HoldDuration,
	}, logger)

	w := watcher.New(ledger, lc, watcher.Config{
		LeadTime:          cfg.ExpiryLeadTime,
		Interval:          cfg.WatcherInterval,
		AutomationEnabled: cfg.AutomationEnabled,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go w.Run(ctx)

	h := httpadp.NewHandler()
	lh := httpadp.NewLoanHandler(lc)
	wh := httpadp.NewWebhookHandler(w)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())

	idemp := middleware.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.POST("/quote", lh.Quote)
	e.POST("/loans", lh.OpenLoan, idemp)
	e.GET("/loans/:loan_id", lh.GetLoan)
	e.GET("/loans/:loan_id/expiry", lh.LoanExpiry)
	e.POST("/loans/:loan_id/charge", lh.ChargeLoan, idemp)
	e.POST("/loans/:loan_id/release", lh.ReleaseLoan, idemp)
	e.POST("/loans/:loan_id/repay", lh.RepayLoan, idemp)
	e.GET("/owners/:owner_key/loans", lh.OwnerLoans)
	e.GET("/owners/:owner_key/credit", lh.OwnerCredit)

	// Delivered by the automation service; the state machine dedupes replays.
	e.POST("/webhooks/automation", wh.AutomationEvent)

	go func() {
		addr := ":" + cfg.AppPort
		logger.Info("listening", slog.String("addr", addr), slog.String("ledger", cfg.LedgerBackend))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
