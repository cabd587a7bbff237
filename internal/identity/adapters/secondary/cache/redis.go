// Package cache adapts the Token Cache port to Redis. Key layout follows
// spec §4.2: jwt:<email> for the live token pair, verify:<key> for a
// pending verification key, both with per-entry TTL eviction.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func jwtKey(email string) string  { return fmt.Sprintf("jwt:%s", email) }
func verifyKey(key string) string { return fmt.Sprintf("verify:%s", key) }

func (c *RedisCache) PutTokenPair(ctx context.Context, email string, pair domain.TokenPair, ttl time.Duration) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal token pair: %w", err)
	}
	return c.client.Set(ctx, jwtKey(email), data, ttl).Err()
}

func (c *RedisCache) GetTokenPair(ctx context.Context, email string) (*domain.TokenPair, error) {
	data, err := c.client.Get(ctx, jwtKey(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get token pair: %w", err)
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("unmarshal token pair: %w", err)
	}
	return &pair, nil
}

func (c *RedisCache) DeleteTokenPair(ctx context.Context, email string) error {
	return c.client.Del(ctx, jwtKey(email)).Err()
}

func (c *RedisCache) PutVerificationKey(ctx context.Context, key, email string, ttl time.Duration) error {
	return c.client.Set(ctx, verifyKey(key), email, ttl).Err()
}

func (c *RedisCache) GetVerificationKey(ctx context.Context, key string) (string, error) {
	email, err := c.client.Get(ctx, verifyKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("get verification key: %w", err)
	}
	return email, nil
}

func (c *RedisCache) DeleteVerificationKey(ctx context.Context, key string) error {
	return c.client.Del(ctx, verifyKey(key)).Err()
}
