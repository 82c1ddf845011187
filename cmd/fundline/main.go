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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/fundline/fundline/internal/allocation"
	"github.com/fundline/fundline/internal/app"
	"github.com/fundline/fundline/internal/approval"
	"github.com/fundline/fundline/internal/contract"
	"github.com/fundline/fundline/internal/ledger"
	"github.com/fundline/fundline/internal/org"
	"github.com/fundline/fundline/internal/platform/cache"
	"github.com/fundline/fundline/internal/platform/db"
	"github.com/fundline/fundline/internal/rbac"
	"github.com/fundline/fundline/internal/shared"
	"github.com/fundline/fundline/internal/wallet"
	"github.com/fundline/fundline/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, job submission disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	rbacMiddleware := rbac.Middleware{Logger: logger}

	orgRepo := org.NewRepository(pool)
	orgService := org.NewService(orgRepo)

	allocationRepo := allocation.NewRepository(pool)
	allocationService := allocation.NewService(allocationRepo, orgService)
	allocationHandler := allocation.NewHandler(logger, allocationService, rbacMiddleware)

	walletRepo := wallet.NewRepository(pool)
	walletService := wallet.NewService(walletRepo)
	walletHandler := wallet.NewHandler(logger, walletService)

	approvalRepo := approval.NewRepository(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	approvalService := approval.NewService(approvalRepo, allocationService, walletService, idempotencyStore, approval.Config{
		AllowOvercommit: cfg.AllowOvercommit,
	})
	approvalHandler := approval.NewHandler(logger, approvalService, rbacMiddleware)

	contractRepo := contract.NewRepository(pool)
	contractService := contract.NewService(contractRepo, allocationService)
	contractHandler := contract.NewHandler(logger, contractService, rbacMiddleware)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, rbacMiddleware)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              pool,
		RBACMiddleware:    rbacMiddleware,
		AllocationHandler: allocationHandler,
		WalletHandler:     walletHandler,
		ApprovalHandler:   approvalHandler,
		ContractHandler:   contractHandler,
		LedgerHandler:     ledgerHandler,
		JobHandler:        jobHandler,
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

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
