package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/taksu/ports"
)

// RedisStore is a Redis implementation of the NonceStore interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis nonce store
func NewRedisStore(client *redis.Client) ports.NonceStore {
	return &RedisStore{
		client: client,
		prefix: "taksu:nonce:",
	}
}

// Save records the nonce with its TTL
func (s *RedisStore) Save(ctx context.Context, nonce string, ttl time.Duration) error {
	key := s.prefix + nonce

	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}

// Consume removes the nonce and reports whether it was still live. GETDEL
// keeps read and delete one atomic step, so a nonce redeems at most once
// even across instances.
func (s *RedisStore) Consume(ctx context.Context, nonce string) (bool, error) {
	key := s.prefix + nonce

	_, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return true, nil
}
