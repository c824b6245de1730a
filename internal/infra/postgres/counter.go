package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// CounterStore holds the single durable integer behind product identity.
// Reservation is one atomic statement, so concurrent inspection runs can
// never observe overlapping identifier ranges. The counter bootstraps at 0.
type CounterStore struct {
	pool *pgxpool.Pool
}

func NewCounterStore(pool *pgxpool.Pool) *CounterStore {
	return &CounterStore{pool: pool}
}

func (c *CounterStore) Reserve(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve: n must be positive, got %d", n)
	}

	var last int64
	err := c.pool.QueryRow(ctx, `
		INSERT INTO product_counter (id, value) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET value = product_counter.value + $1
		RETURNING value`,
		n,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve product ids: %v", entity.ErrPersistence, err)
	}

	return last - int64(n) + 1, nil
}
