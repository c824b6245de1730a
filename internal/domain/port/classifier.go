package port

import (
	"context"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// FrameClassifier invokes the remote classification capability for each
// frame. The returned slice always has the same length and order as the
// input; per-item failures are encoded in the predictions themselves.
type FrameClassifier interface {
	Classify(ctx context.Context, frames []entity.Frame) ([]entity.Prediction, error)
}
