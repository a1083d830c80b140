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

	"github.com/payflow-fin/payflow/internal/app"
	"github.com/payflow-fin/payflow/internal/invoices"
	"github.com/payflow-fin/payflow/internal/observability"
	"github.com/payflow-fin/payflow/internal/payments"
	"github.com/payflow-fin/payflow/internal/platform/cache"
	"github.com/payflow-fin/payflow/internal/platform/db"
	"github.com/payflow-fin/payflow/internal/processlog"
	"github.com/payflow-fin/payflow/internal/rbac"
	"github.com/payflow-fin/payflow/internal/shared"
	"github.com/payflow-fin/payflow/internal/users"
	"github.com/payflow-fin/payflow/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stats cache and async logging degrade", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	recorder := processlog.NewPGRecorder(pool)
	var plogRecorder processlog.Recorder = recorder
	var jobClient *jobs.Client
	if redisClient != nil {
		jobClient, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warn("asynq client", slog.Any("error", err))
		} else {
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("asynq client close", slog.Any("error", err))
				}
			}()
			plogRecorder = jobs.NewAsyncRecorder(jobClient, recorder, logger)
		}
	}
	emitter := processlog.NewEmitter(plogRecorder, logger)
	emitter.SetObserver(metrics)

	idempotencyStore := shared.NewIdempotencyStore(pool)

	rbacMiddleware := rbac.Middleware{Logger: logger}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, idempotencyStore, emitter, logger)
	invoicesHandler := invoices.NewHandler(logger, invoicesService, rbacMiddleware)

	paymentsRepo := payments.NewRepository(pool)
	statsProvider := payments.NewStatsProvider(paymentsRepo, redisClient, cfg.StatsCacheTTL, logger)
	paymentsService := payments.NewService(paymentsRepo, usersService, emitter, statsProvider, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService, statsProvider, rbacMiddleware)

	plogRepo := processlog.NewRepository(pool)
	plogService := processlog.NewService(plogRepo)
	plogHandler := processlog.NewHandler(logger, plogService, rbacMiddleware)

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
		InvoicesHandler:   invoicesHandler,
		PaymentsHandler:   paymentsHandler,
		UsersHandler:      usersHandler,
		ProcessLogHandler: plogHandler,
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
