package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tvloc02/EventVer1-sub001/shared/config"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

// NewClient builds a Redis client from configuration without touching the
// network.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDBNumber(),
		DialTimeout:  cfg.StoreTimeout(),
		ReadTimeout:  cfg.StoreTimeout(),
		WriteTimeout: cfg.StoreTimeout(),
	})
}

// Connect builds the client and checks the connection once.
func Connect(ctx context.Context, cfg *config.Config, log logging.Logger) (*redis.Client, error) {
	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info(ctx, "redis connected",
		"addr", fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		"db", cfg.RedisDBNumber(),
	)
	return client, nil
}

// TestConnection runs a set/get/del round trip against the store.
func (s *RevocationStore) TestConnection(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	testKey := "test:connection"
	testValue := "connection_test_ok"

	if err := s.client.Set(ctx, testKey, testValue, time.Minute).Err(); err != nil {
		return s.unavailable("test_connection", err)
	}
	result, err := s.client.Get(ctx, testKey).Result()
	if err != nil {
		return s.unavailable("test_connection", err)
	}
	if result != testValue {
		return fmt.Errorf("test value mismatch: expected %s, got %s", testValue, result)
	}
	if err := s.client.Del(ctx, testKey).Err(); err != nil {
		return s.unavailable("test_connection", err)
	}
	return nil
}
