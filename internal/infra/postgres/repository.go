package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *entity.Run) error {
	query := `
		INSERT INTO inspection_runs (
			id, user_id, video_key, status, frame_count, product_count,
			ng_count, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.UserID, run.VideoKey, string(run.Status),
		run.FrameCount, run.ProductCount, run.NGCount,
		run.Attempt, run.MaxAttempts, run.ErrorMessage,
		run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.Run) error {
	query := `
		UPDATE inspection_runs SET
			status=$2, frame_count=$3, product_count=$4, ng_count=$5,
			attempt=$6, error_message=$7, updated_at=$8, completed_at=$9
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.FrameCount, run.ProductCount,
		run.NGCount, run.Attempt, run.ErrorMessage,
		run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	query := `
		SELECT id, user_id, video_key, status, frame_count, product_count,
			ng_count, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM inspection_runs WHERE id=$1`

	run := &entity.Run{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.UserID, &run.VideoKey, &status,
		&run.FrameCount, &run.ProductCount, &run.NGCount,
		&run.Attempt, &run.MaxAttempts, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find run by id: %w", err)
	}
	run.Status = entity.RunStatus(status)
	return run, nil
}
