package redis

import (
	"context"
	"time"
)

// ExplorerBudget implements ports.ExplorerBudget on top of RateLimitStore,
// allowing perMinute requests to each explorer per minute window.
type ExplorerBudget struct {
	store     *RateLimitStore
	perMinute int64
}

// NewExplorerBudget creates a budget. perMinute <= 0 disables limiting.
func NewExplorerBudget(store *RateLimitStore, perMinute int64) *ExplorerBudget {
	return &ExplorerBudget{store: store, perMinute: perMinute}
}

// Allow consumes one request from the explorer's budget.
func (b *ExplorerBudget) Allow(ctx context.Context, explorer string) (bool, error) {
	if b.perMinute <= 0 {
		return true, nil
	}
	res, err := b.store.Allow(ctx, "explorer:"+explorer, b.perMinute, time.Minute)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
