package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
)

type RedisCache struct {
	Client        *redis.Client
	sessionPrefix string
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return NewFromClient(redis.NewClient(opts), cfg.Auth.SessionPrefix)
}

// NewFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewFromClient(client *redis.Client, sessionPrefix string) *RedisCache {
	if sessionPrefix == "" {
		sessionPrefix = "session:"
	}
	return &RedisCache{Client: client, sessionPrefix: sessionPrefix}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil for a missing key.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// KeyForSession generates the Redis key holding a session token's user id.
func (c *RedisCache) KeyForSession(token string) string {
	return c.sessionPrefix + token
}

// PutSession stores a session token. The auth service owns this in
// production; the seed command and tests use it directly.
func (c *RedisCache) PutSession(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	return c.Set(ctx, c.KeyForSession(token), strconv.FormatUint(userID, 10), ttl)
}

// SessionUserID resolves a session token. A missing key is not an error.
func (c *RedisCache) SessionUserID(ctx context.Context, token string) (uint64, bool, error) {
	val, err := c.Get(ctx, c.KeyForSession(token))
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // unknown or expired
	} else if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed session value for token: %w", err)
	}
	return id, true, nil
}

// AcquireLock takes a best-effort distributed lock. It reports false when
// another holder already owns key. The lock lapses after ttl even if the
// holder dies.
func (c *RedisCache) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, owner, ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ReleaseLock drops key only if owner still holds it.
func (c *RedisCache) ReleaseLock(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, c.Client, []string{key}, owner).Err()
}

// Publish sends payload on a pub/sub channel.
func (c *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Client.Publish(ctx, channel, payload).Err()
}
