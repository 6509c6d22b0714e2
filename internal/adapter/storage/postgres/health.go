package postgres

import (
	"context"
	"errors"
	"fmt"
)

// HealthCheck reports the database as unhealthy when it is unreachable or
// when the plan catalog has no active plan to invest in.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var plans int
	if err := h.pool.QueryRow(ctx, `SELECT count(*) FROM plans WHERE is_active`).Scan(&plans); err != nil {
		return fmt.Errorf("query catalog: %w", err)
	}
	if plans == 0 {
		return errors.New("catalog has no active plans")
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgres"
}
