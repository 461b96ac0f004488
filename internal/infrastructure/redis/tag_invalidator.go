package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"marketplace/internal/domain"
)

const (
	InvalidationChannel = "cache_invalidations"
	tagSetPrefix        = "cache:tag:"
	generationPrefix    = "cache:gen:"
)

// dropTagsScript deletes every key registered under the first ARGV[1] tag
// sets in KEYS and then the sets themselves. The remaining KEYS are the
// matching generation counters, each incremented once.
var dropTagsScript = redis.NewScript(`
    local n = tonumber(ARGV[1])
    local dropped = 0
    for i = 1, n do
        local members = redis.call("SMEMBERS", KEYS[i])
        for _, key in ipairs(members) do
            dropped = dropped + redis.call("DEL", key)
        end
        redis.call("DEL", KEYS[i])
        redis.call("INCR", KEYS[n + i])
    end
    return dropped
`)

type RedisTagInvalidator struct {
	client *redis.Client
}

func NewRedisTagInvalidator(client *redis.Client) *RedisTagInvalidator {
	return &RedisTagInvalidator{client: client}
}

func (r *RedisTagInvalidator) InvalidateTags(ctx context.Context, tags ...string) error {
	const op = "redis.InvalidateTags"

	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, 2*len(tags))
	for _, tag := range tags {
		keys = append(keys, tagSetKey(tag))
	}
	keys = append(keys, generationKeys(tags)...)
	if err := dropTagsScript.Run(ctx, r.client, keys, len(tags)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("%s: drop: %w", op, err)
	}

	payload, err := json.Marshal(domain.InvalidationEvent{Tags: tags})
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := r.client.Publish(ctx, InvalidationChannel, payload).Err(); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}
	return nil
}

func tagSetKey(tag string) string {
	return tagSetPrefix + tag
}

func generationKeys(tags []string) []string {
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = generationPrefix + tag
	}
	return keys
}
