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
	"github.com/joho/godotenv"

	"github.com/meridian-lsm/meridian/internal/app"
	"github.com/meridian-lsm/meridian/internal/auth"
	"github.com/meridian-lsm/meridian/internal/catalog"
	"github.com/meridian-lsm/meridian/internal/clients"
	"github.com/meridian-lsm/meridian/internal/intake"
	"github.com/meridian-lsm/meridian/internal/observability"
	"github.com/meridian-lsm/meridian/internal/platform/cache"
	"github.com/meridian-lsm/meridian/internal/platform/db"
	"github.com/meridian-lsm/meridian/internal/quotes"
	"github.com/meridian-lsm/meridian/internal/workorders"
	"github.com/meridian-lsm/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	_ = godotenv.Load()

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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, redisClient, cfg.TokenTTL)
	authHandler := auth.NewHandler(logger, authService)

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo)
	clientsHandler := clients.NewHandler(logger, clientsService)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, redisClient, cfg.CatalogCacheTTL, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	quotesRepo := quotes.NewRepository(pool)
	quotesService := quotes.NewService(quotesRepo, clientsRepo, catalogService)
	quotesHandler := quotes.NewHandler(logger, quotesService)

	intakeRepo := intake.NewRepository(pool)
	intakeService := intake.NewService(intakeRepo, logger)
	intakeHandler := intake.NewHandler(logger, intakeService)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	workOrdersRepo := workorders.NewRepository(pool)
	workOrdersService := workorders.NewService(workOrdersRepo, clientsRepo, intakeService, jobClient, logger)
	workOrdersHandler := workorders.NewHandler(logger, workOrdersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthHandler:       authHandler,
		AuthMiddleware:    auth.Middleware(authService),
		ClientsHandler:    clientsHandler,
		CatalogHandler:    catalogHandler,
		QuotesHandler:     quotesHandler,
		WorkOrdersHandler: workOrdersHandler,
		IntakeHandler:     intakeHandler,
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
