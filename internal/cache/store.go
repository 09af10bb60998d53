// Package cache memoises computed statistics in a local or shared key/value store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Store is the byte-level key/value contract the statistics cache builds on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LocalConfig sizes the in-process store.
type LocalConfig struct {
	MaxSizeMB   int
	CounterSize int
}

// LocalStore keeps entries in an in-process ristretto cache.
type LocalStore struct {
	client *ristretto.Cache
}

// NewLocalStore builds a ristretto-backed store.
func NewLocalStore(cfg LocalConfig) (*LocalStore, error) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 32
	}
	if cfg.CounterSize <= 0 {
		cfg.CounterSize = 100_000
	}
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cfg.CounterSize),
		MaxCost:     int64(cfg.MaxSizeMB) * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init ristretto: %w", err)
	}

	log.Info().
		Int("max_size_mb", cfg.MaxSizeMB).
		Int("counter_size", cfg.CounterSize).
		Msg("local statistics cache initialised")

	return &LocalStore{client: client}, nil
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := value.([]byte)
	return raw, ok, nil
}

// Set implements Store. Writes are flushed before returning so a following
// Get observes them.
func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.client.SetWithTTL(key, value, int64(len(value)), ttl) {
		return errors.New("ristretto dropped write")
	}
	s.client.Wait()
	return nil
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.client.Del(key)
	return nil
}

// Close releases the ristretto goroutines.
func (s *LocalStore) Close() {
	s.client.Close()
}

// RedisConfig describes the shared Redis store.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("address", cfg.Address).Msg("connected to redis")
	return rdb, nil
}

// RedisStore keeps entries in Redis so every API replica shares them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an established client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
