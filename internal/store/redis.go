package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/one-capital/pricefeed/internal/model"
)

// RedisStore keeps the latest price entry per symbol in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a Redis-backed latest-price store.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// PutPrices writes each entry under latest:<symbol> with the store TTL so
// abandoned symbols clean themselves up.
func (s *RedisStore) PutPrices(ctx context.Context, prices model.PriceMap) error {
	pipe := s.client.Pipeline()

	for symbol, entry := range prices {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal price entry %s: %w", symbol, err)
		}
		pipe.Set(ctx, latestKey(symbol), data, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write latest prices: %w", err)
	}
	return nil
}

// GetLatest reads one symbol's latest entry. Returns nil when the key is
// missing or expired.
func (s *RedisStore) GetLatest(ctx context.Context, symbol string) (*model.PriceEntry, error) {
	data, err := s.client.Get(ctx, latestKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read latest price %s: %w", symbol, err)
	}

	var entry model.PriceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal latest price %s: %w", symbol, err)
	}
	return &entry, nil
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func latestKey(symbol string) string {
	return "latest:" + symbol
}
