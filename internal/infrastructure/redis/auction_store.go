package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"service-auction/internal/domain"
	"service-auction/pkg/utils"

	"github.com/go-redis/redis/v8"
)

const maxTxRetries = 32

var ErrTooMuchContention = errors.New("auction update retried too many times")

// RedisAuctionStore keeps each auction as one JSON document. Updates use
// WATCH/MULTI so a mutation only commits if nobody else wrote the auction in
// between; on conflict it is re-run against the fresh value.
type RedisAuctionStore struct {
	client *redis.Client
}

func NewRedisAuctionStore(client *redis.Client) *RedisAuctionStore {
	return &RedisAuctionStore{client: client}
}

func auctionKey(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

func (r *RedisAuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	record := auction.Clone()
	record.ID = utils.AuctionID(auction.Agent, auction.Creator)

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, auctionKey(record.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: %s", domain.ErrAuctionExists, record.ID)
	}

	auction.ID = record.ID
	return nil
}

func (r *RedisAuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return load(ctx, r.client, auctionID)
}

func (r *RedisAuctionStore) UpdateAuction(ctx context.Context, auctionID string, mutate domain.AuctionMutation) (*domain.Auction, error) {
	key := auctionKey(auctionID)

	var updated *domain.Auction
	txf := func(tx *redis.Tx) error {
		auction, err := load(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := mutate(auction); err != nil {
			return err
		}

		data, err := json.Marshal(auction)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = auction
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s", ErrTooMuchContention, auctionID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, auctionID string) (*domain.Auction, error) {
	data, err := c.Get(ctx, auctionKey(auctionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
		}
		return nil, err
	}

	var auction domain.Auction
	if err := json.Unmarshal(data, &auction); err != nil {
		return nil, fmt.Errorf("decode auction %s: %w", auctionID, err)
	}
	return &auction, nil
}
