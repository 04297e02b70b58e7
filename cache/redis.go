package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const scanCount = 100

// RedisCache is a Redis-backed translation cache.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	log       zerolog.Logger
}

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	URL       string // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       int    // TTL in seconds (0 = no expiration)
	KeyPrefix string // Prefix for all keys (default: "potlai:")
	Logger    zerolog.Logger
}

// NewRedisCache connects to Redis and checks the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	c := NewRedisCacheFromClient(client, cfg.TTL, cfg.KeyPrefix)
	c.log = cfg.Logger
	return c, nil
}

// NewRedisCacheFromClient creates a RedisCache from an existing Redis client.
func NewRedisCacheFromClient(client *redis.Client, ttlSeconds int, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}

	return &RedisCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		log:       zerolog.Nop(),
	}
}

// Get retrieves a value from Redis. Errors other than a missing key are
// logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		return "", false
	}
	return val, true
}

// Set stores a value in Redis.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.keyPrefix+key, value, c.ttl).Err()
}

// Entries scans every key under the prefix. Keys that expire during the
// scan are left out.
func (c *RedisCache) Entries(ctx context.Context) (map[string]string, error) {
	result := make(map[string]string)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, full := range keys {
			val, err := c.client.Get(ctx, full).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, err
			}
			result[strings.TrimPrefix(full, c.keyPrefix)] = val
		}
		if next == 0 {
			return result, nil
		}
		cursor = next
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Verify RedisCache implements Lister
var _ Lister = (*RedisCache)(nil)
