package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"amethyst-storefront/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// RateCache implements ports.RateCache using Redis string keys with TTL.
type RateCache struct {
	client *goredis.Client
	prefix string
}

// NewRateCache creates a new Redis-backed rate quote cache.
func NewRateCache(client *goredis.Client) *RateCache {
	return &RateCache{
		client: client,
		prefix: nsKey("rate") + ":",
	}
}

func (c *RateCache) key(currency domain.Currency) string {
	return c.prefix + string(currency) + ":" + domain.FiatCurrency
}

// Get returns the cached quote for currency, or nil, nil on a miss.
func (c *RateCache) Get(ctx context.Context, currency domain.Currency) (*domain.RateQuote, error) {
	val, err := c.client.Get(ctx, c.key(currency)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis rate get: %w", err)
	}

	var q domain.RateQuote
	if err := json.Unmarshal(val, &q); err != nil {
		return nil, fmt.Errorf("decode cached rate: %w", err)
	}
	return &q, nil
}

// Set stores a quote for ttl. A non-positive ttl skips the write.
func (c *RateCache) Set(ctx context.Context, q domain.RateQuote, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	val, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode rate: %w", err)
	}
	if err := c.client.Set(ctx, c.key(q.Currency), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis rate set: %w", err)
	}
	return nil
}
