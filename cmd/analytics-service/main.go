package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-auction/internal/bootstrap"
	"service-auction/internal/config"
	"service-auction/internal/domain"
	"service-auction/internal/infrastructure/mysql"
	"service-auction/internal/infrastructure/redis"
	"service-auction/pkg/logger"
)

// AnalyticsService copies the published audit stream into MySQL for
// deployments whose auction store does not keep its own audit log.
type AnalyticsService struct {
	subscriber domain.EventSubscriber
	audit      domain.AuditRepository
	log        logger.Logger
}

func NewAnalyticsService(subscriber domain.EventSubscriber, audit domain.AuditRepository, log logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		subscriber: subscriber,
		audit:      audit,
		log:        log,
	}
}

func (as *AnalyticsService) Start(ctx context.Context) error {
	as.log.Info("Starting analytics service")

	return as.subscriber.SubscribeToAuditEvents(ctx, func(event *domain.AuditEvent) error {
		as.log.Debug("Storing audit event", "kind", event.Kind, "auction_id", event.AuctionID)
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return as.audit.SaveEvent(saveCtx, event)
	})
}

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

	if cfg.Store.Driver == config.StoreMySQL {
		log.Fatal("The mysql store already records audit events; analytics service is not needed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rdb, err := bootstrap.OpenRedis(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	defer rdb.Close()

	db, err := bootstrap.OpenMySQL(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to MySQL", "error", err)
	}
	defer db.Close()

	analyticsService := NewAnalyticsService(
		redis.NewRedisEventSubscriber(rdb, cfg.Events.Channel, log),
		mysql.NewMySQLAuditRepository(db),
		log,
	)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := analyticsService.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Analytics service failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-done:
	}

	log.Info("Shutting down analytics service...")
	stopRun()
	<-done
	log.Info("Analytics service stopped")
}
