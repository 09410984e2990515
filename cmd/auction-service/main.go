package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-auction/internal/api/handlers"
	apimiddleware "service-auction/internal/api/middleware"
	"service-auction/internal/auth"
	"service-auction/internal/bootstrap"
	"service-auction/internal/config"
	"service-auction/internal/domain"
	"service-auction/internal/services"
	"service-auction/pkg/clock"
	"service-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given account and exit")
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
	log.Info("Starting Auction Manager Service", "config", cfg.GetConfigString())

	clk := clock.Real()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = ephemeralSecret()
		log.Warn("No JWT secret configured, using an ephemeral one; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenManager(secret, cfg.Auth.TokenTTL, clk)
	if err != nil {
		log.Fatal("Failed to create token manager", "error", err)
	}

	if *issueToken != "" {
		token, expires, err := tokens.IssueToken(*issueToken)
		if err != nil {
			log.Fatal("Failed to issue token", "error", err)
		}
		fmt.Printf("%s\nexpires: %s\n", token, expires.Format(time.RFC3339))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	backend, err := bootstrap.NewBackend(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize storage", "driver", cfg.Store.Driver, "error", err)
	}
	defer backend.Close()

	emitter := backend.Emitter(cfg)
	limits := cfg.Auction.Limits()

	auctionManager := services.NewAuctionManager(
		backend.Store,
		backend.Directory,
		services.NewStaticAuthorizer(cfg.Authority.IDs...),
		backend.Limiter,
		emitter,
		nil, // scheduler is set below
		clk,
		limits,
		log,
	)

	bidService := services.NewBidService(
		backend.Store,
		backend.Limiter,
		emitter,
		nil,
		clk,
		limits,
		cfg.Auction.AntiSnipePolicy(),
		cfg.Auction.ExcessiveBids,
		log,
	)

	scheduler := services.NewCronAuctionScheduler(
		backend.Jobs,
		auctionManager,
		backend.Leader,
		cfg.Instance.ID,
		domain.Identity{ID: cfg.Authority.SchedulerIdentity(), Signer: true},
		cfg.Scheduler.Spec,
		clk,
		log,
	)
	auctionManager.SetScheduler(scheduler)
	bidService.SetScheduler(scheduler)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(auctionManager, bidService, backend.Audit, cfg.Auction.AmountDecimals, log)
	auctionHandler.Register(e.Group("/api/v1"), apimiddleware.RequireIdentity(tokens, log))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-manager",
			"store":     backend.Driver,
			"timestamp": clk.Now().Format(time.RFC3339),
		})
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := scheduler.Start(runCtx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	go campaignForLeadership(runCtx, backend.Leader, cfg.Instance.ID, cfg.Leader.TTL, log)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting auction manager server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction manager service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	stopRun()
	if err := backend.Leader.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := emitter.Close(); err != nil {
		log.Error("Failed to flush audit events", "error", err)
	}

	log.Info("Auction manager service stopped")
}

// campaignForLeadership keeps trying to become the scheduler leader. The
// election renews its own lease once won.
func campaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string,
	ttl time.Duration, log logger.Logger) {
	interval := ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	leading := false
	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err == nil && !became {
			// SetNX fails while we already hold the lease.
			became, err = election.IsLeader(ctx, instanceID)
		}
		switch {
		case err != nil:
			log.Error("Failed to attempt leadership", "error", err)
		case became && !leading:
			log.Info("Became auction manager leader", "instance_id", instanceID)
		case !became && leading:
			log.Warn("Lost auction manager leadership", "instance_id", instanceID)
		}
		leading = err == nil && became

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
