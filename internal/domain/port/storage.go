package port

import (
	"context"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// VideoStorage fetches uploaded videos from the object store.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
}

// FrameStorage is the per-run frame area in the object store.
type FrameStorage interface {
	// Reset purges everything under the run prefix.
	Reset(ctx context.Context, runPrefix string) error
	// UploadFrames stores the retained frames under the run prefix and
	// returns the frames with their object keys filled in.
	UploadFrames(ctx context.Context, runPrefix string, frames []entity.Frame) ([]entity.Frame, error)
	// FrameURL returns a time-limited URL for displaying one stored frame.
	FrameURL(ctx context.Context, objectKey string) (string, error)
}
