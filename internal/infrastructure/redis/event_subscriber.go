package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

// SubscribeToInvalidations blocks, feeding each invalidation to handler until
// ctx is cancelled.
func (r *RedisEventSubscriber) SubscribeToInvalidations(ctx context.Context, handler domain.InvalidationHandler) error {
	pubsub := r.client.Subscribe(ctx, InvalidationChannel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()

	r.log.Info("Subscribed to cache invalidations", "channel", InvalidationChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.InvalidationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Error("Failed to parse invalidation", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(&event); err != nil {
				r.log.Error("Failed to handle invalidation", "tags", event.Tags, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Invalidation subscriber stopped")
			return ctx.Err()
		}
	}
}
