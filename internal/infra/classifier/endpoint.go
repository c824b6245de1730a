package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
	"github.com/sm-diecasting/inspection-service/internal/infra/metrics"
)

// Endpoint calls the remote OK/NG classification model over HTTP JSON.
// One request per frame: base64-encoded image payload in, label plus
// confidence out. A failed call never aborts the batch; it is recorded as a
// failed prediction for that frame and the remaining frames proceed.
type Endpoint struct {
	url     string
	client  *http.Client
	workers int
	logger  *zap.Logger
}

type EndpointConfig struct {
	URL     string
	Timeout time.Duration
	Workers int
}

func NewEndpoint(cfg EndpointConfig, logger *zap.Logger) *Endpoint {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Endpoint{
		url:     cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		workers: workers,
		logger:  logger,
	}
}

type classifyRequest struct {
	Image       string `json:"image"`
	ContentType string `json:"content_type"`
}

type classifyResponse struct {
	Prediction string  `json:"prediction"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Classify invokes the endpoint for every frame. Calls are issued through a
// bounded worker pool; results are written by input index, so output[i]
// always corresponds to frames[i].
func (e *Endpoint) Classify(ctx context.Context, frames []entity.Frame) ([]entity.Prediction, error) {
	predictions := make([]entity.Prediction, len(frames))
	if len(frames) == 0 {
		return predictions, nil
	}

	jobs := make(chan int, len(frames))
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				predictions[i] = e.classifyOne(ctx, frames[i])
			}
		}()
	}
	for i := range frames {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, p := range predictions {
		metrics.ClassificationsTotal.WithLabelValues(outcomeLabel(p)).Inc()
	}

	return predictions, nil
}

func (e *Endpoint) classifyOne(ctx context.Context, frame entity.Frame) entity.Prediction {
	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return e.failed(frame, fmt.Sprintf("read frame: %v", err))
	}

	body, err := json.Marshal(classifyRequest{
		Image:       base64.StdEncoding.EncodeToString(data),
		ContentType: "image/jpeg",
	})
	if err != nil {
		return e.failed(frame, fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return e.failed(frame, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return e.failed(frame, fmt.Sprintf("invoke endpoint: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return e.failed(frame, fmt.Sprintf("endpoint status %d: %s", resp.StatusCode, raw))
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return e.failed(frame, fmt.Sprintf("decode response: %v", err))
	}

	label := parsed.Prediction
	if label == "" {
		label = parsed.Class
	}
	switch label {
	case string(entity.VerdictOK):
		return entity.NewPrediction(frame, entity.VerdictOK, parsed.Confidence)
	case string(entity.VerdictNG):
		return entity.NewPrediction(frame, entity.VerdictNG, parsed.Confidence)
	default:
		// The endpoint's own failure sentinel, or an unknown label.
		return e.failed(frame, fmt.Sprintf("unexpected label %q", label))
	}
}

func (e *Endpoint) failed(frame entity.Frame, reason string) entity.Prediction {
	e.logger.Warn("frame classification failed",
		zap.Int("frame_index", frame.Index),
		zap.String("reason", reason),
	)
	return entity.FailedPrediction(frame, reason)
}

func outcomeLabel(p entity.Prediction) string {
	if p.Failed {
		return "failed"
	}
	if p.Label == entity.VerdictNG {
		return "ng"
	}
	return "ok"
}
