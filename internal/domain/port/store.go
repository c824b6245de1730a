package port

import (
	"context"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// ResultStore is the durable home of product records.
type ResultStore interface {
	// Put persists all records of a completed run in one call.
	Put(ctx context.Context, records []entity.ProductRecord) error
	// Scan returns every stored record, ordered by product identifier.
	Scan(ctx context.Context) ([]entity.ProductRecord, error)
	// UpdateVerdict flips the final verdict of one product. Updating to the
	// value already stored is a no-op success.
	UpdateVerdict(ctx context.Context, productID int64, verdict entity.Verdict) error
}

// CounterStore owns the durable product-identity counter.
type CounterStore interface {
	// Reserve atomically advances the counter by n and returns the first
	// identifier of the reserved range. Concurrent callers never observe
	// overlapping ranges.
	Reserve(ctx context.Context, n int) (int64, error)
}
