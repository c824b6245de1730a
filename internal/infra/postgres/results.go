package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// ResultStore keeps one row per product: the 0/1 final verdict and the
// ordered constituent frame predictions as JSONB.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

type frameRecord struct {
	FramePath  string  `json:"frame_path"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Failed     bool    `json:"failed,omitempty"`
	FailReason string  `json:"fail_reason,omitempty"`
}

func (s *ResultStore) Put(ctx context.Context, records []entity.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		frames, err := json.Marshal(toFrameRecords(rec.Frames))
		if err != nil {
			return fmt.Errorf("%w: marshal frames for product %d: %v", entity.ErrPersistence, rec.ProductID, err)
		}
		batch.Queue(
			`INSERT INTO products (product_id, final_result, frames) VALUES ($1,$2,$3)`,
			rec.ProductID, verdictToInt(rec.FinalResult), frames,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%w: insert products: %v", entity.ErrPersistence, err)
		}
	}
	return nil
}

func (s *ResultStore) Scan(ctx context.Context) ([]entity.ProductRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, final_result, frames FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan products: %v", entity.ErrPersistence, err)
	}
	defer rows.Close()

	var records []entity.ProductRecord
	for rows.Next() {
		var (
			id     int64
			result int
			raw    []byte
		)
		if err := rows.Scan(&id, &result, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan product row: %v", entity.ErrPersistence, err)
		}
		var frames []frameRecord
		if err := json.Unmarshal(raw, &frames); err != nil {
			return nil, fmt.Errorf("%w: unmarshal frames for product %d: %v", entity.ErrPersistence, id, err)
		}
		records = append(records, entity.ProductRecord{
			ProductID:   id,
			Frames:      fromFrameRecords(frames),
			FinalResult: verdictFromInt(result),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan products: %v", entity.ErrPersistence, err)
	}
	return records, nil
}

// UpdateVerdict is the manual correction path. Writing the already-stored
// verdict is a no-op success; an unknown product is an error.
func (s *ResultStore) UpdateVerdict(ctx context.Context, productID int64, verdict entity.Verdict) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET final_result=$2 WHERE product_id=$1`,
		productID, verdictToInt(verdict),
	)
	if err != nil {
		return fmt.Errorf("%w: update verdict: %v", entity.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", entity.ErrNotFound, productID)
	}
	return nil
}

func toFrameRecords(preds []entity.Prediction) []frameRecord {
	out := make([]frameRecord, 0, len(preds))
	for _, p := range preds {
		out = append(out, frameRecord{
			FramePath:  p.Frame.StorageKey(),
			Prediction: string(p.Label),
			Confidence: p.Confidence,
			Failed:     p.Failed,
			FailReason: p.FailReason,
		})
	}
	return out
}

func fromFrameRecords(frames []frameRecord) []entity.Prediction {
	out := make([]entity.Prediction, 0, len(frames))
	for i, f := range frames {
		out = append(out, entity.Prediction{
			Frame:      entity.Frame{Index: i, ObjectKey: f.FramePath},
			Label:      entity.Verdict(f.Prediction),
			Confidence: f.Confidence,
			Failed:     f.Failed,
			FailReason: f.FailReason,
		})
	}
	return out
}

func verdictToInt(v entity.Verdict) int {
	if v == entity.VerdictNG {
		return 1
	}
	return 0
}

func verdictFromInt(v int) entity.Verdict {
	if v == 1 {
		return entity.VerdictNG
	}
	return entity.VerdictOK
}
