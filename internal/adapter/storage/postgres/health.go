package postgres

import (
	"context"
	"fmt"
)

// HealthCheck verifies the orders table is reachable, which also catches a
// database that is up but not migrated.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM orders LIMIT 1"); err != nil {
		return fmt.Errorf("orders table unreachable: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
