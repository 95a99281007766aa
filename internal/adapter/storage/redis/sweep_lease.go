package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLease implements ports.SweepLease using Redis SET NX so that only one
// replica runs a batch sweep at a time.
type SweepLease struct {
	client *goredis.Client
	key    string
}

// NewSweepLease creates a new Redis-backed sweep lease.
func NewSweepLease(client *goredis.Client) *SweepLease {
	return &SweepLease{
		client: client,
		key:    nsKey("lease", "payment-sweep"),
	}
}

// Acquire takes the lease for owner. Returns false if another owner holds it.
func (l *SweepLease) Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.key, owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis lease acquire: %w", err)
	}
	return result == "OK", nil
}

// Release drops the lease if owner still holds it.
func (l *SweepLease) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, owner).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis lease release: %w", err)
	}
	return nil
}
