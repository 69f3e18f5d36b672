package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store abstracts the session backend to make testing easier.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// RedisStore is a concrete implementation backed by go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a new Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Set writes a session record with a TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a session record. Returns ErrNoSession on a miss so callers
// never see redis.Nil.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoSession
		}
		return "", err
	}
	return value, nil
}

// Del removes a session record.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
