package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitStore keeps fixed-window counters for HTTP clients and explorer budgets.
// Keys look like amethyst:ratelimit:<subject>:<window index>.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: nsKey("ratelimit") + ":",
		now:    time.Now,
	}
}

// RateLimitResult is the counter state after one Allow call.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // unix seconds
}

// Allow counts one hit for subject in the current window. The increment and
// the first-hit expiry go out in one MULTI so a crash between them cannot
// leave a counter without a TTL.
func (s *RateLimitStore) Allow(ctx context.Context, subject string, limit int64, window time.Duration) (*RateLimitResult, error) {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	windowID := s.now().Unix() / secs
	key := fmt.Sprintf("%s%s:%d", s.prefix, subject, windowID)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, time.Duration(secs+1)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("count %s: %w", subject, err)
	}

	count := incr.Val()
	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   (windowID + 1) * secs,
	}, nil
}
