package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisStore persists values in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient creates a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kvstore: redis ping: %w", err)
	}

	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get loads the raw value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, classifyRedisError(err)
	}
	return payload, nil
}

// Set stores value without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return classifyRedisError(s.client.Set(ctx, key, value, 0).Err())
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return classifyRedisError(s.client.Del(ctx, keys...).Err())
}

// Keys walks the keyspace with SCAN to avoid blocking the server.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	pattern := escapeGlob(prefix) + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, classifyRedisError(err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// classifyRedisError maps maxmemory rejections onto ErrCapacityExceeded.
func classifyRedisError(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "OOM ") {
		return fmt.Errorf("%w: %s", ErrCapacityExceeded, err.Error())
	}
	return err
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(s)
}

var _ Store = (*RedisStore)(nil)

// IsCapacityError reports whether err signals a full store.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}
