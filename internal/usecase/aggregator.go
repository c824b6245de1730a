package usecase

import (
	"context"
	"fmt"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
	"github.com/sm-diecasting/inspection-service/internal/domain/port"
	"github.com/sm-diecasting/inspection-service/internal/infra/metrics"
)

// ProductAggregator folds consecutive groups of frame predictions into one
// product record each. Identifiers come from the durable counter in a single
// atomic reservation covering the whole call, so a failed reservation leaves
// the counter untouched and concurrent runs never overlap.
type ProductAggregator struct {
	counter   port.CounterStore
	groupSize int
}

func NewProductAggregator(counter port.CounterStore, groupSize int) *ProductAggregator {
	if groupSize < 1 {
		groupSize = 1
	}
	return &ProductAggregator{counter: counter, groupSize: groupSize}
}

// Aggregate partitions predictions into consecutive, non-overlapping groups
// of the configured size, in input order. A trailing remainder shorter than
// the group size is dropped; that is truncation, not an error.
func (a *ProductAggregator) Aggregate(ctx context.Context, predictions []entity.Prediction) ([]entity.ProductRecord, error) {
	numProducts := len(predictions) / a.groupSize
	if numProducts == 0 {
		return nil, nil
	}

	first, err := a.counter.Reserve(ctx, numProducts)
	if err != nil {
		return nil, fmt.Errorf("reserve product ids: %w", err)
	}

	records := make([]entity.ProductRecord, 0, numProducts)
	for i := 0; i < numProducts; i++ {
		group := predictions[i*a.groupSize : (i+1)*a.groupSize]
		record := entity.NewProductRecord(first+int64(i), group)
		metrics.ProductsAggregatedTotal.WithLabelValues(string(record.FinalResult)).Inc()
		records = append(records, record)
	}

	return records, nil
}
