package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paybridge/internal/bootstrap"
	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/gateway/smartpay"
	"paybridge/internal/gateway/stripe"
	"paybridge/internal/gateway/worldpay"
	"paybridge/internal/handler"
	"paybridge/internal/middleware"
	"paybridge/internal/notification"
	"paybridge/internal/repository"
	"paybridge/internal/router"
	"paybridge/internal/worker"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Repositories ---
	charges := repository.NewChargeRepository(db)
	refunds := repository.NewRefundRepository(db)
	accounts := repository.NewGatewayAccountRepository(db)
	notificationLog := repository.NewNotificationLogRepository(db)

	// --- Gateway adapters ---
	registry := gateway.NewRegistry(
		worldpay.New(cfg.Gateways.Worldpay, logger),
		stripe.New(cfg.Gateways.Stripe, logger),
		smartpay.New(cfg.Gateways.Smartpay, logger),
	)
	logger.Info("gateway providers registered", zap.Strings("gateways", registry.Names()))

	// --- Notification reconciler ---
	reconciler := notification.NewReconciler(
		charges,
		refunds,
		notificationLog,
		logger,
		worldpay.NewNotifications(),
		stripe.NewNotifications(cfg.Gateways.Stripe),
		smartpay.NewNotifications(cfg.Gateways.Smartpay),
	)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Notification Deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewNotificationDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		cfg.Redis.DedupTTL,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for notification dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Routes ---
	notificationHandler := handler.NewNotificationHandler(reconciler, logger)
	router.Setup(e, cfg, notificationHandler, deduper)

	// --- Capture worker ---
	scheduler := worker.NewScheduler(cfg, charges, accounts, registry, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting paybridge server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed")
	return nil
}
