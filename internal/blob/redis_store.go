package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps blobs as plain string values under a key prefix.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Put(ctx context.Context, data []byte) (string, error) {
	locator := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+locator, data, 0).Err(); err != nil {
		return "", fmt.Errorf("redis set blob: %w", err)
	}
	return locator, nil
}

func (s *RedisStore) Get(ctx context.Context, locator string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+locator).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get blob: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, locator string) error {
	n, err := s.client.Del(ctx, s.prefix+locator).Result()
	if err != nil {
		return fmt.Errorf("redis delete blob: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
