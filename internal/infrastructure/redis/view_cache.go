package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"marketplace/internal/domain"
)

var errStaleFill = errors.New("cache generation moved")

// RedisViewCache stores rendered bid histories and registers each key under
// its cache tags so RedisTagInvalidator can drop it. Fills are guarded by the
// per-tag generation counters the invalidator bumps.
type RedisViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisViewCache(client *redis.Client, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{client: client, ttl: ttl}
}

func (c *RedisViewCache) GetBidHistory(ctx context.Context, offerID int64) ([]domain.BidHistoryEntry, bool, error) {
	const op = "redis.GetBidHistory"

	data, err := c.client.Get(ctx, bidHistoryKey(offerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var entries []domain.BidHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("%s: decode: %w", op, err)
	}
	return entries, true, nil
}

func (c *RedisViewCache) Generation(ctx context.Context, tags []string) (int64, error) {
	gen, err := sumGenerations(ctx, c.client, generationKeys(tags))
	if err != nil {
		return 0, fmt.Errorf("redis.Generation: %w", err)
	}
	return gen, nil
}

func (c *RedisViewCache) SetBidHistory(ctx context.Context, offerID int64, entries []domain.BidHistoryEntry, tags []string, generation int64) error {
	const op = "redis.SetBidHistory"

	if entries == nil {
		entries = []domain.BidHistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	key := bidHistoryKey(offerID)
	gens := generationKeys(tags)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := sumGenerations(ctx, tx, gens)
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			for _, tag := range tags {
				pipe.SAdd(ctx, tagSetKey(tag), key)
			}
			return nil
		})
		return err
	}, gens...)
	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// sumGenerations adds up the counters under keys. Counters only grow, so an
// unchanged sum means none of them moved.
func sumGenerations(ctx context.Context, client multiGetter, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("generation %q: %w", raw, err)
		}
		sum += n
	}
	return sum, nil
}

func bidHistoryKey(offerID int64) string {
	return fmt.Sprintf("view:offer:%d:bids", offerID)
}
