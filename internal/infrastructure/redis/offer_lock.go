package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"marketplace/pkg/logger"
)

// RedisOfferLocker serializes bid submissions per offer across instances.
type RedisOfferLocker struct {
	rs      *redsync.Redsync
	options offerLockOptions
	log     logger.Logger
}

type offerLockOptions struct {
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
}

type OfferLockOption func(*offerLockOptions)

func WithLockExpiry(d time.Duration) OfferLockOption {
	return func(o *offerLockOptions) {
		o.expiry = d
	}
}

func WithLockTries(n int) OfferLockOption {
	return func(o *offerLockOptions) {
		o.tries = n
	}
}

func WithLockRetryDelay(d time.Duration) OfferLockOption {
	return func(o *offerLockOptions) {
		o.retryDelay = d
	}
}

func NewRedisOfferLocker(client *redis.Client, log logger.Logger, opts ...OfferLockOption) *RedisOfferLocker {
	options := offerLockOptions{
		expiry:     8 * time.Second,
		tries:      40,
		retryDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &RedisOfferLocker{
		rs:      redsync.New(goredis.NewPool(client)),
		options: options,
		log:     log,
	}
}

func (l *RedisOfferLocker) WithOfferLock(ctx context.Context, offerID int64, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(
		offerLockKey(offerID),
		redsync.WithExpiry(l.options.expiry),
		redsync.WithTries(l.options.tries),
		redsync.WithRetryDelay(l.options.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("redis.WithOfferLock: acquire offer %d: %w", offerID, err)
	}
	defer func() {
		// The lock may have expired while fn ran; the next holder is unaffected.
		if ok, err := mutex.UnlockContext(context.Background()); err != nil || !ok {
			l.log.Warn("Offer lock release failed", "offer_id", offerID, "error", err)
		}
	}()

	return fn(ctx)
}

func offerLockKey(offerID int64) string {
	return fmt.Sprintf("offer_lock:%d", offerID)
}
