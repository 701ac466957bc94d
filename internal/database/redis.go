package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis parses REDIS_URL and pings the server once.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("redis connected")
	return client, nil
}

// RedisStorage adapts a go-redis client to fiber.Storage for the rate limiter.
type RedisStorage struct {
	db redis.UniversalClient
}

func NewRedisStorage(client redis.UniversalClient) *RedisStorage {
	return &RedisStorage{db: client}
}

// Get returns nil for empty keys and missing values.
func (s *RedisStorage) Get(key string) ([]byte, error) {
	if len(key) == 0 {
		return nil, nil
	}
	val, err := s.db.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores val with expiration; zero means no expiration.
func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if len(key) == 0 || len(val) == 0 {
		return nil
	}
	return s.db.Set(context.Background(), key, val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	if len(key) == 0 {
		return nil
	}
	return s.db.Del(context.Background(), key).Err()
}

// Reset clears only limiter keys; the database may be shared.
func (s *RedisStorage) Reset() error {
	ctx := context.Background()
	iter := s.db.Scan(ctx, 0, "limiter:*", 1000).Iterator()
	for iter.Next(ctx) {
		if err := s.db.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStorage) Close() error {
	return s.db.Close()
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx).Err()
}
