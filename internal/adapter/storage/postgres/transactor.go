package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool   Pool
	delays []time.Duration
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool, delays: retryDelays}
}

// Begin starts a new database transaction, retrying transient connection failures.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	var tx pgx.Tx
	err := withRetry(ctx, t.delays, func() error {
		var err error
		tx, err = t.pool.Begin(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}
