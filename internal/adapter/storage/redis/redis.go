package redis

import (
	"context"
	"fmt"

	"amethyst-storefront/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KeyNamespace prefixes every key the storefront writes, so the payment
// subsystem can share a Redis database with the rest of the shop.
const KeyNamespace = "amethyst:"

const clientName = "amethyst-storefront"

func nsKey(parts ...string) string {
	key := KeyNamespace
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// NewClient connects to the Redis instance backing rate caching, sweep leases
// and request budgets.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:       cfg.Addr(),
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: clientName,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Str("namespace", KeyNamespace).
		Msg("redis ready for rate cache, sweep lease and budgets")

	return client, nil
}
