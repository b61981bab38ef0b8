package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultRedisPrefix = "vnmarket:cache:"
	redisOpTimeout     = 2 * time.Second
	redisScanCount     = 200
)

// RedisStore keeps msgpack-encoded entries in Redis (or KeyDB). Redis
// expires keys natively, so DeleteExpired is a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedisStore creates a store. An empty prefix selects "vnmarket:cache:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Load reads an entry.
func (s *RedisStore) Load(key string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}

	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return e, true, nil
}

// Save writes an entry with a Redis TTL matching its remaining lifetime.
func (s *RedisStore) Save(e Entry) error {
	remaining := time.Until(e.ExpiresAt())
	if remaining <= 0 {
		return nil
	}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", e.Key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.redisKey(e.Key), data, remaining).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", e.Key, err)
	}
	return nil
}

// Delete removes one entry.
func (s *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// DeleteMatching scans the prefix and removes keys containing pattern.
func (s *RedisStore) DeleteMatching(pattern string) (int64, error) {
	if pattern == "" {
		return 0, nil
	}
	return s.deleteScanned(func(key string) bool {
		return strings.Contains(strings.TrimPrefix(key, s.prefix), pattern)
	})
}

// DeleteExpired is a no-op; Redis evicts expired keys itself.
func (s *RedisStore) DeleteExpired(time.Time) (int64, error) {
	return 0, nil
}

// Clear removes every key under the prefix.
func (s *RedisStore) Clear() error {
	_, err := s.deleteScanned(func(string) bool { return true })
	return err
}

func (s *RedisStore) deleteScanned(match func(key string) bool) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*redisOpTimeout)
	defer cancel()

	var deleted int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !match(key) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete %s from redis: %w", key, err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	return deleted, nil
}
