package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck reports Redis as healthy only when it accepts writes: the sweep
// lease and rate limits fail against a read-only replica even though PING works.
type HealthCheck struct {
	client *goredis.Client
	key    string
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client, key: nsKey("health")}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, h.key, time.Now().Unix(), 30*time.Second).Err(); err != nil {
		return fmt.Errorf("redis not writable: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "redis"
}
