package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// RedisTranslationCache stores provider results keyed by a digest of the
// provider, language pair, format and source text.
type RedisTranslationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTranslationCache(client *redis.Client, ttl time.Duration) *RedisTranslationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisTranslationCache{client: client, prefix: "folio:translation:", ttl: ttl}
}

func (c *RedisTranslationCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.makeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisTranslationCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.makeKey(key), value, c.ttl).Err()
}

func (c *RedisTranslationCache) makeKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.prefix + hex.EncodeToString(sum[:])
}
