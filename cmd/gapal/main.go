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

	"github.com/gapal/gapal/internal/app"
	"github.com/gapal/gapal/internal/auth"
	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/observability"
	"github.com/gapal/gapal/internal/orders"
	"github.com/gapal/gapal/internal/platform/cache"
	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/realtime"
	"github.com/gapal/gapal/internal/sales"
	"github.com/gapal/gapal/internal/shared"
	"github.com/gapal/gapal/internal/stock"
	"github.com/gapal/gapal/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authMiddleware := auth.Middleware{Store: tokenStore, Logger: logger}

	hub := realtime.NewHub(logger)
	hub.InstrumentConnections(metrics.WebsocketClients)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo)
	productsHandler := products.NewHandler(logger, productsService)

	notificationsRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewService(notificationsRepo, hub, logger)
	dispatcher.InstrumentSends(metrics.NotificationsSent)
	notificationsHandler := notifications.NewHandler(logger, dispatcher)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, dispatcher, logger,
		stock.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})
	stockService.InstrumentMovements(metrics.StockMovementsRecd)
	stockHandler := stock.NewHandler(logger, stockService)

	ordersRepo := orders.NewRepository(pool, stockRepo)
	ordersService := orders.NewService(ordersRepo, productsRepo, stockService, dispatcher, auditLogger, logger)
	ordersService.InstrumentCreations(metrics.OrdersCreated)
	ordersHandler := orders.NewHandler(logger, ordersService)

	salesRepo := sales.NewRepository(pool, stockRepo)
	salesService := sales.NewService(salesRepo, productsRepo, stockService, auditLogger, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	realtimeHandler := realtime.NewHandler(logger, hub, dispatcher)

	asynqOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(asynqOpts)
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(asynq.NewInspector(asynqOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		AuthMiddleware:       authMiddleware,
		ProductsHandler:      productsHandler,
		StockHandler:         stockHandler,
		OrdersHandler:        ordersHandler,
		SalesHandler:         salesHandler,
		NotificationsHandler: notificationsHandler,
		RealtimeHandler:      realtimeHandler,
		JobsHandler:          jobsHandler,
		Metrics:              metrics,
	})

	// Server timeouts cover the HTTP request; upgraded WebSocket
	// connections are hijacked and run on their own ping/pong deadlines.
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
