package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeNamespace = "cmd-dedupe"

// RedisDeduper records processed idempotency keys in Redis so every API
// instance rejects replays of the same command.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper over the given client. Keys expire
// after the TTL, which bounds the replay window.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) dedupeKey(userID, key string) string {
	return dedupeNamespace + ":" + userID + ":" + key
}

// Add records the key and reports whether it was newly seen.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.dedupeKey(userID, key), 1, r.ttl).Result()
}

// Remove forgets a previously recorded key so the command can be
// retried after downstream processing failed.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.dedupeKey(userID, key)).Err()
}

// AddMany records the keys in one pipeline round trip. The returned
// slice reports, per key, whether it was newly seen. On error the slice
// still covers keys recorded before the failure so callers can roll
// those back.
func (r *RedisDeduper) AddMany(ctx context.Context, userID string, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pending := make([]*redis.BoolCmd, len(keys))
	results := make([]bool, len(keys))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			pending[i] = pipe.SetNX(ctx, r.dedupeKey(userID, key), 1, r.ttl)
		}
		return nil
	})
	if err != nil {
		return results, err
	}
	for i, cmd := range pending {
		val, cmdErr := cmd.Result()
		if cmdErr != nil {
			return results, fmt.Errorf("dedupe key %q: %w", keys[i], cmdErr)
		}
		results[i] = val
	}
	return results, nil
}
