package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	Update(ctx context.Context, run *entity.Run) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Run, error)
}
