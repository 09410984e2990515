package redis

import (
	"context"
	"encoding/json"

	"service-auction/internal/domain"

	"github.com/go-redis/redis/v8"
)

const DefaultEventChannel = "auction_events"

// RedisEventPublisher emits audit events as JSON on a pub/sub channel.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisEventPublisher{client: client, channel: channel}
}

func (r *RedisEventPublisher) Emit(ctx context.Context, event *domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, data).Err()
}
