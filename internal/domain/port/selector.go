package port

import (
	"context"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// FrameSelectionResult is what a single pass over the video produced.
// Truncated is set when decoding stopped mid-stream; the frames collected
// up to that point are still usable.
type FrameSelectionResult struct {
	Frames    []entity.Frame
	Scanned   int
	Truncated bool
}

// FrameSelector consumes a video once and emits the ordered set of
// representative frames, persisted into outputDir (purged first).
type FrameSelector interface {
	SelectFrames(ctx context.Context, videoPath string, outputDir string) (*FrameSelectionResult, error)
}
