package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements BlockStore using Redis. Block expiry is
// delegated to Redis key TTLs, so expired blocks disappear without a
// sweeper.
type RedisStore struct {
	client *redis.Client
	prefix string
	closed bool
	mu     sync.Mutex
}

// RedisConfig holds configuration for the Redis block store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:      "localhost:6379",
		Password:     "",
		DB:           0,
		Prefix:       "secgw:block:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisStore creates a new Redis block store and verifies
// connectivity with a ping.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisConfig().Prefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// prefixKey adds the prefix to the identifier.
func (s *RedisStore) prefixKey(identifier string) string {
	return s.prefix + identifier
}

// Put implements BlockStore. The value is the expiry as unix
// milliseconds and the key TTL enforces the expiry.
func (s *RedisStore) Put(ctx context.Context, identifier string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return s.Delete(ctx, identifier)
	}

	err := s.client.Set(ctx, s.prefixKey(identifier), until.UnixMilli(), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Get implements BlockStore.
func (s *RedisStore) Get(ctx context.Context, identifier string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.prefixKey(identifier)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get error: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse block expiry: %w", err)
	}

	until := time.UnixMilli(ms)
	if time.Now().After(until) {
		return time.Time{}, false, nil
	}

	return until, true, nil
}

// Delete implements BlockStore.
func (s *RedisStore) Delete(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.prefixKey(identifier)).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// List implements BlockStore using SCAN over the prefix.
func (s *RedisStore) List(ctx context.Context) (map[string]time.Time, error) {
	result := make(map[string]time.Time)

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		val, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get error: %w", err)
		}

		ms, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}

		result[key[len(s.prefix):]] = time.UnixMilli(ms)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan error: %w", err)
	}

	return result, nil
}

// Close implements BlockStore.
// Close is idempotent.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
