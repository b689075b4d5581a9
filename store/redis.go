package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// clearScript removes every tracked credential key plus the tracking set in
// one round-trip, so a crash mid-clear cannot leave the index pointing at
// deleted entries.
const clearScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, member in ipairs(members) do
  redis.call("DEL", member)
end
redis.call("DEL", KEYS[1])
return #members
`

var clearLua = redis.NewScript(clearScript)

// Redis is a Store backed by a Redis instance, for headless hosts of the SDK
// (bots, server-side automation) where an OS keyring is unavailable. Keys are
// namespaced under a prefix and tracked in a companion set so Clear needs no
// SCAN.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. prefix namespaces all entries, e.g. one
// prefix per device identity.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "buddyline"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string { return r.prefix + ":cred:" + key }

func (r *Redis) indexKey() string { return r.prefix + ":cred-index" }

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(key), value, 0)
	pipe.SAdd(ctx, r.indexKey(), r.key(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Store. Deleting an absent key is a no-op.
func (r *Redis) Delete(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(key))
	pipe.SRem(ctx, r.indexKey(), r.key(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Clear implements Store.
func (r *Redis) Clear(ctx context.Context) error {
	if err := clearLua.Run(ctx, r.client, []string{r.indexKey()}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}
