package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap/zapcore"

	"marketplace/internal/api/handlers"
	"marketplace/internal/api/middleware"
	"marketplace/internal/config"
	"marketplace/internal/infrastructure/redis"
	"marketplace/internal/infrastructure/storage"
	"marketplace/internal/infrastructure/validation"
	"marketplace/internal/infrastructure/websocket"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
	"marketplace/pkg/utils"
)

// offer-events pushes offer invalidations and notifications to browsers and
// accepts bids over the same socket.
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
	log := logger.NewWithConfig("offer-events", level)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := utils.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	// Initialize connection manager
	connManager := websocket.NewConnectionManager(log)
	wsNotifier := websocket.NewWebSocketNotifier(connManager)

	validator := validation.NewEntityValidator()
	lifecycle := services.NewOfferLifecycle(
		stores.Offers,
		stores.Bids,
		stores.Notifications,
		redis.NewRedisTagInvalidator(rdb),
		validator,
		nil,
		log,
	)
	notifications := services.NewNotificationService(stores.Notifications, wsNotifier, validator, log)

	var bidOpts []services.BidServiceOption
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

	eventListener := services.NewEventListener(wsNotifier, wsNotifier, log,
		services.WithDeletedOfferReaper(stores.Offers, connManager))
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)
	wsHandlers := handlers.NewWebSocketHandlers(bidService, stores.Offers, connManager, log)

	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))
	router.HandleFunc("/ws/offers/{offerID}", wsHandlers.HandleConnection).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "offer-events"})
	}).Methods(http.MethodGet)

	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()
	go func() {
		if err := eventListener.Start(listenCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Invalidation listener stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.EventsPort),
		Handler: router,
	}
	go func() {
		log.Info("Starting offer events gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down offer events gateway...")
	stopListening()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Offer events gateway stopped")
}
