package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure from the tier.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisTier is the durable tier shared across contexts. Records get a
// generous TTL as a backstop; the cleanup sweep owns expiry semantics.
type RedisTier struct {
	client      redis.UniversalClient
	scanPattern string
	backstopTTL time.Duration
}

// NewRedisTier returns a RedisTier scanning keys under keyPrefix.
// backstopTTL caps how long an unswept record can linger; zero disables it.
func NewRedisTier(client redis.UniversalClient, keyPrefix string, backstopTTL time.Duration) *RedisTier {
	return &RedisTier{
		client:      client,
		scanPattern: keyPrefix + ":*",
		backstopTTL: backstopTTL,
	}
}

// Name implements [Tier].
func (t *RedisTier) Name() string { return "redis" }

// Get implements [Tier].
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

// Set implements [Tier].
func (t *RedisTier) Set(ctx context.Context, key string, value []byte) error {
	if err := t.client.Set(ctx, key, value, t.backstopTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Remove implements [Tier].
func (t *RedisTier) Remove(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ListKeys implements [Tier].
func (t *RedisTier) ListKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := t.client.Scan(ctx, cursor, t.scanPattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
