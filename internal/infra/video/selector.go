package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
	"github.com/sm-diecasting/inspection-service/internal/domain/port"
)

// Selector turns a video into an ordered, deduplicated set of still frames.
// ffmpeg demuxes the video to an MJPEG pipe; each decoded frame is dropped
// if blank (mean brightness above the threshold) or too similar to the last
// retained frame (mean absolute difference below the motion threshold).
type Selector struct {
	brightnessThreshold float64
	motionThreshold     float64
	logger              *zap.Logger
}

func NewSelector(brightnessThreshold, motionThreshold float64, logger *zap.Logger) *Selector {
	return &Selector{
		brightnessThreshold: brightnessThreshold,
		motionThreshold:     motionThreshold,
		logger:              logger,
	}
}

// SelectFrames consumes the video once and writes retained frames into
// outputDir, which is purged first. A video that cannot be opened or decoded
// at all fails with entity.ErrMediaRead; a mid-stream decode failure stops
// extraction and returns the frames collected so far with Truncated set.
func (s *Selector) SelectFrames(ctx context.Context, videoPath string, outputDir string) (*port.FrameSelectionResult, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrMediaRead, err)
	}

	if err := os.RemoveAll(outputDir); err != nil {
		return nil, fmt.Errorf("purge frame dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", entity.ErrMediaRead, err)
	}

	result, selErr := s.selectStream(stdout, outputDir)
	if selErr != nil {
		// ffmpeg may still be writing into the pipe; drain it so Wait
		// cannot block on a full pipe buffer.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	if selErr != nil || waitErr != nil {
		if result.Scanned == 0 {
			return nil, fmt.Errorf("%w: ffmpeg: %v: %s",
				entity.ErrMediaRead, firstErr(selErr, waitErr), lastLine(stderr.String()))
		}
		// Partial decode: keep what we have.
		result.Truncated = true
		s.logger.Warn("video decode stopped early, keeping collected frames",
			zap.Int("scanned", result.Scanned),
			zap.Int("retained", len(result.Frames)),
			zap.NamedError("decode_err", selErr),
			zap.NamedError("ffmpeg_err", waitErr),
		)
	}

	s.logger.Info("frame selection finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("retained", len(result.Frames)),
		zap.Bool("truncated", result.Truncated),
	)

	return result, nil
}

// selectStream runs the selection algorithm over a raw MJPEG stream. The
// returned error marks where decoding stopped; frames retained before that
// point remain valid.
func (s *Selector) selectStream(r io.Reader, outputDir string) (*port.FrameSelectionResult, error) {
	sc := newMJPEGScanner(r)
	result := &port.FrameSelectionResult{}

	var baseline *image.Gray
	for {
		payload, err := sc.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return result, nil
			}
			return result, fmt.Errorf("read frame %d: %w", result.Scanned, err)
		}

		img, err := jpeg.Decode(bytes.NewReader(payload))
		if err != nil {
			return result, fmt.Errorf("decode frame %d: %w", result.Scanned, err)
		}
		result.Scanned++
		gray := toGray(img)

		// Blank/transition frames are discarded before any comparison and
		// never become the baseline.
		if meanIntensity(gray) > s.brightnessThreshold {
			continue
		}

		if baseline != nil {
			if !gray.Bounds().Eq(baseline.Bounds()) {
				// Raster size changed: skip the comparison, keep the baseline.
				continue
			}
			if meanAbsDiff(baseline, gray) <= s.motionThreshold {
				continue
			}
		}

		frame := entity.Frame{
			Index: len(result.Frames),
			Path:  filepath.Join(outputDir, fmt.Sprintf("frame_%d.jpg", len(result.Frames))),
		}
		if err := os.WriteFile(frame.Path, payload, 0644); err != nil {
			return result, fmt.Errorf("write frame %d: %w", frame.Index, err)
		}
		result.Frames = append(result.Frames, frame)
		baseline = gray
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
