package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"service-auction/internal/domain"
	"service-auction/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, channel string, log logger.Logger) *RedisEventSubscriber {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisEventSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// SubscribeToAuditEvents blocks, handing every event to handler until ctx is
// cancelled. Malformed payloads and handler errors are logged and skipped.
func (r *RedisEventSubscriber) SubscribeToAuditEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()

	r.log.Info("Subscribed to audit events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := parseEvent(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "kind", event.Kind, "auction_id", event.AuctionID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEvent(payload string) (*domain.AuditEvent, error) {
	var event domain.AuditEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}
	if event.Kind == "" || event.AuctionID == "" {
		return nil, fmt.Errorf("invalid event: %s", payload)
	}
	return &event, nil
}
