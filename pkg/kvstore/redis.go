package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore persists key-value entries in Redis. Entries carry no TTL;
// durability follows the Redis persistence configuration of the deployment.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisOptions configures a RedisStore
type RedisOptions struct {
	URL       string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore creates a Redis-backed store and verifies connectivity
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if opts.Password != "" {
		redisOpts.Password = opts.Password
	}
	if opts.DB >= 0 {
		redisOpts.DB = opts.DB
	}
	redisOpts.DialTimeout = 5 * time.Second
	redisOpts.ReadTimeout = 3 * time.Second
	redisOpts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "tracklet"
	}

	return &RedisStore{client: client, keyPrefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client, primarily for tests
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "tracklet"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + ":" + key
}

func (s *RedisStore) get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

// GetString retrieves a string value
func (s *RedisStore) GetString(ctx context.Context, key string) (string, bool, error) {
	return s.get(ctx, key)
}

// SetString stores a string value
func (s *RedisStore) SetString(ctx context.Context, key, value string) error {
	return s.set(ctx, key, value)
}

// GetBool retrieves a boolean value
func (s *RedisStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	value, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return false, ok, err
	}
	return value == boolTrue, true, nil
}

// SetBool stores a boolean value
func (s *RedisStore) SetBool(ctx context.Context, key string, value bool) error {
	v := boolFalse
	if value {
		v = boolTrue
	}
	return s.set(ctx, key, v)
}

// GetTime retrieves a timestamp value
func (s *RedisStore) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	value, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse timestamp for key %s: %w", key, err)
	}
	return t, true, nil
}

// SetTime stores a timestamp value
func (s *RedisStore) SetTime(ctx context.Context, key string, value time.Time) error {
	return s.set(ctx, key, value.UTC().Format(timeFormat))
}

// Delete removes a key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed for key %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
