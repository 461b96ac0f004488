package utils

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"marketplace/internal/config"
)

func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("utils.OpenRedis: ping %s: %w", cfg.Address, err)
	}
	return client, nil
}
