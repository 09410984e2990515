package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-auction/internal/api/middleware"
	"service-auction/internal/auth"
	"service-auction/internal/bootstrap"
	"service-auction/internal/config"
	"service-auction/internal/domain"
	"service-auction/internal/infrastructure/redis"
	"service-auction/internal/infrastructure/websocket"
	"service-auction/internal/services"
	"service-auction/pkg/clock"
	"service-auction/pkg/logger"

	"github.com/gorilla/mux"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting Bidding Service", "config", cfg.GetConfigString())

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("Bidding service needs auth.jwt_secret shared with the auction manager")
	}
	clk := clock.Real()
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clk)
	if err != nil {
		log.Fatal("Failed to create token manager", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	backend, err := bootstrap.NewBackend(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize storage", "driver", cfg.Store.Driver, "error", err)
	}
	defer backend.Close()

	if !backend.Shared() {
		log.Fatal("Bidding service cannot run on a private store", "driver", backend.Driver,
			"error", bootstrap.ErrSharedStoreRequired)
	}

	emitter := backend.Emitter(cfg)

	bidService := services.NewBidService(
		backend.Store,
		backend.Limiter,
		emitter,
		nil,
		clk,
		cfg.Auction.Limits(),
		cfg.Auction.AntiSnipePolicy(),
		cfg.Auction.ExcessiveBids,
		log,
	)

	// Only used to move deadlines after extensions; the auction manager
	// runs the jobs.
	scheduler := services.NewCronAuctionScheduler(
		backend.Jobs,
		nil,
		backend.Leader,
		cfg.Instance.ID,
		domain.Identity{},
		cfg.Scheduler.Spec,
		clk,
		log,
	)
	bidService.SetScheduler(scheduler)

	connManager := websocket.NewConnectionManager(log)
	notifier := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(connManager, notifier, notifier, log)
	eventSubscriber := redis.NewRedisEventSubscriber(backend.Redis, cfg.Events.Channel, log)

	wsHandler := websocket.NewWebSocketHandler(bidService, backend.Store, tokens, connManager,
		cfg.Auction.AmountDecimals, log)

	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))

	router.HandleFunc("/ws/auction/{auctionID}", wsHandler.HandleConnection)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	go func() {
		if err := eventListener.Start(runCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting bidding service", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopRun()
	if err := emitter.Close(); err != nil {
		log.Error("Failed to flush audit events", "error", err)
	}

	log.Info("Bidding service stopped")
}
