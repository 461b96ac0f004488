package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap/zapcore"

	"marketplace/internal/api/handlers"
	"marketplace/internal/config"
	"marketplace/internal/infrastructure/leader"
	"marketplace/internal/infrastructure/metrics"
	"marketplace/internal/infrastructure/redis"
	"marketplace/internal/infrastructure/storage"
	"marketplace/internal/infrastructure/validation"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
	"marketplace/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log := logger.NewWithConfig("bidding-api", level)
	log.Info("Starting bidding API", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize Redis
	rdb, err := utils.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize stores
	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	collector := metrics.NewCollector("marketplace")
	validator := validation.NewEntityValidator()
	invalidator := redis.NewRedisTagInvalidator(rdb)
	viewCache := redis.NewRedisViewCache(rdb, cfg.Cache.ViewTTL)
	leaderElection := leader.NewRedisLeaderElection(rdb, leader.DefaultLeaderKey, cfg.Leader.TTL, log)

	// Initialize services
	lifecycle := services.NewOfferLifecycle(
		stores.Offers,
		stores.Bids,
		stores.Notifications,
		invalidator,
		validator,
		collector,
		log,
	)
	notifications := services.NewNotificationService(stores.Notifications, nil, validator, log)

	bidOpts := []services.BidServiceOption{services.WithMetrics(collector)}
	if cfg.Bidding.SerializeSubmissions {
		locker := stores.Locker
		if locker == nil {
			locker = redis.NewRedisOfferLocker(rdb, log, redis.WithLockExpiry(cfg.Bidding.LockExpiry))
		}
		bidOpts = append(bidOpts, services.WithOfferLocker(locker))
	}
	if cfg.Bidding.NotifyOutbid {
		bidOpts = append(bidOpts, services.WithOutbidNotifications(notifications))
	}
	bidService := services.NewBidService(stores.Offers, stores.Bids, lifecycle, validator, log, bidOpts...)
	view := services.NewBiddingView(stores.Offers, stores.Bids, stores.Users, viewCache, log)

	scheduler := services.NewCronMaintenanceScheduler(
		cfg.Maintenance.PruneSchedule,
		cfg.Maintenance.NotificationRetention,
		notifications,
		leaderElection,
		cfg.Instance.ID,
		log,
	)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			handlers.UserIDHeader,
		},
		MaxAge: 86400,
	}))

	handlers.RegisterRoutes(e.Group("/api/v1"),
		handlers.NewOfferHandler(lifecycle, view, log),
		handlers.NewBidHandler(bidService, lifecycle, log),
		handlers.NewNotificationHandler(notifications, log),
	)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "bidding-api",
			"storage":   cfg.Storage.Driver,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	// Start background services
	if err := scheduler.Start(context.Background()); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding API...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding API stopped")
}
