package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
	"github.com/sm-diecasting/inspection-service/internal/domain/port"
	"github.com/sm-diecasting/inspection-service/internal/infra/metrics"
)

// RunInspectionUseCase drives one inspection run end to end: download the
// video, select frames, classify them, aggregate per-product verdicts, and
// persist the records. Stage order is strict and single-pass; a failed
// stage persists no product records.
type RunInspectionUseCase struct {
	repo       port.RunRepository
	videos     port.VideoStorage
	frames     port.FrameStorage
	selector   port.FrameSelector
	classifier port.FrameClassifier
	aggregator *ProductAggregator
	results    port.ResultStore
	publisher  port.StatusPublisher
	dlq        port.DLQPublisher
	notifier   port.Notifier
	logger     *zap.Logger
	tempDir    string
	maxRetry   int
}

type RunInspectionConfig struct {
	TempDir    string
	MaxRetries int
}

func NewRunInspectionUseCase(
	repo port.RunRepository,
	videos port.VideoStorage,
	frames port.FrameStorage,
	selector port.FrameSelector,
	classifier port.FrameClassifier,
	aggregator *ProductAggregator,
	results port.ResultStore,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.Notifier,
	logger *zap.Logger,
	cfg RunInspectionConfig,
) *RunInspectionUseCase {
	return &RunInspectionUseCase{
		repo:       repo,
		videos:     videos,
		frames:     frames,
		selector:   selector,
		classifier: classifier,
		aggregator: aggregator,
		results:    results,
		publisher:  publisher,
		dlq:        dlq,
		notifier:   notifier,
		logger:     logger,
		tempDir:    cfg.TempDir,
		maxRetry:   cfg.MaxRetries,
	}
}

func (uc *RunInspectionUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RunInspectionUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.InspectionRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal request", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("run.id", msg.RunID.String()),
		attribute.String("run.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("run_id", msg.RunID.String()), zap.String("video_key", msg.VideoKey))

	run, err := uc.repo.FindByID(ctx, msg.RunID)
	if err != nil {
		run = entity.NewRun(msg.UserID, msg.VideoKey, uc.maxRetry)
		run.ID = msg.RunID
		if err := uc.repo.Create(ctx, run); err != nil {
			log.Error("failed to create run record", zap.Error(err))
			return fmt.Errorf("create run: %w", err)
		}
	}

	if !run.CanRetry() {
		log.Warn("run exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, run, rawMsg, "max retries exceeded")
		return nil
	}

	run.MarkProcessing()
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to PROCESSING", zap.Error(err))
		return fmt.Errorf("update run: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.inspectionPipeline(ctx, run, rawMsg, log); err != nil {
		return err
	}

	metrics.RunsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.RunStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *RunInspectionUseCase) inspectionPipeline(
	ctx context.Context,
	run *entity.Run,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, run.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Test-started notification goes out before any extraction work.
	uc.notify(ctx, "Inspection started",
		fmt.Sprintf("Inspection of video %s has started (run %s).", run.VideoKey, run.ID), log)

	// Download video
	dlStart := time.Now()
	dlCtx, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.videos.DownloadVideo(dlCtx, run.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.RunStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Select frames
	selStart := time.Now()
	selCtx, spanSel := tracer.Start(ctx, "select_frames")
	framesDir := filepath.Join(workDir, "frames")
	selection, err := uc.selector.SelectFrames(selCtx, videoPath, framesDir)
	if err != nil {
		spanSel.End()
		log.Error("frame selection failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, rawMsg, "select_frames: "+err.Error(), log)
	}
	spanSel.End()
	metrics.RunStageDuration.WithLabelValues("select").Observe(time.Since(selStart).Seconds())
	metrics.FramesScannedTotal.Add(float64(selection.Scanned))
	metrics.FramesSelectedTotal.Add(float64(len(selection.Frames)))
	if selection.Truncated {
		log.Warn("partial decode, continuing with collected frames",
			zap.Int("retained", len(selection.Frames)))
	}

	// Publish retained frames to the frame area (purged first) so the
	// review UI can display them.
	frames := selection.Frames
	if len(frames) > 0 {
		upStart := time.Now()
		upCtx, spanUp := tracer.Start(ctx, "upload_frames")
		runPrefix := run.ID.String()
		if err := uc.frames.Reset(upCtx, runPrefix); err != nil {
			spanUp.End()
			log.Error("failed to reset frame area", zap.Error(err))
			return uc.handleRetryableFailure(ctx, run, rawMsg, "reset_frames: "+err.Error(), log)
		}
		frames, err = uc.frames.UploadFrames(upCtx, runPrefix, frames)
		if err != nil {
			spanUp.End()
			log.Error("failed to upload frames", zap.Error(err))
			return uc.handleRetryableFailure(ctx, run, rawMsg, "upload_frames: "+err.Error(), log)
		}
		spanUp.End()
		metrics.RunStageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())
	}

	// Classify
	clStart := time.Now()
	clCtx, spanCl := tracer.Start(ctx, "classify_frames")
	predictions, err := uc.classifier.Classify(clCtx, frames)
	if err != nil {
		spanCl.End()
		log.Error("classification failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, rawMsg, "classify: "+err.Error(), log)
	}
	spanCl.End()
	metrics.RunStageDuration.WithLabelValues("classify").Observe(time.Since(clStart).Seconds())

	// Aggregate
	agCtx, spanAg := tracer.Start(ctx, "aggregate_products")
	records, err := uc.aggregator.Aggregate(agCtx, predictions)
	if err != nil {
		spanAg.End()
		log.Error("aggregation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, rawMsg, "aggregate: "+err.Error(), log)
	}
	spanAg.End()

	// Persist product records in one bulk write.
	if len(records) > 0 {
		if err := uc.results.Put(ctx, records); err != nil {
			log.Error("failed to persist product records", zap.Error(err))
			return uc.handleRetryableFailure(ctx, run, rawMsg, "put_results: "+err.Error(), log)
		}
	}

	ngCount := 0
	for _, rec := range records {
		if rec.FinalResult == entity.VerdictNG {
			ngCount++
		}
	}

	run.MarkCompleted(len(frames), len(records), ngCount)
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to COMPLETED", zap.Error(err))
		return fmt.Errorf("update run completed: %w", err)
	}

	uc.publishStatus(ctx, run, log)

	uc.notify(ctx, "Inspection finished",
		fmt.Sprintf("Inspection of video %s finished.\nProducts inspected: %d\nProducts judged NG: %d\n",
			run.VideoKey, len(records), ngCount), log)

	log.Info("run completed successfully",
		zap.Int("frame_count", len(frames)),
		zap.Int("product_count", len(records)),
		zap.Int("ng_count", ngCount),
	)

	return nil
}

func (uc *RunInspectionUseCase) handleRetryableFailure(
	ctx context.Context,
	run *entity.Run,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	run.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, run)

	if !run.CanRetry() {
		return uc.handlePermanentFailure(ctx, run, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(run.Attempt)).Inc()
	uc.publishStatus(ctx, run, log)

	return &entity.RetryableError{
		Attempt: run.Attempt,
		Err:     fmt.Errorf("retryable failure (attempt %d/%d): %s", run.Attempt, run.MaxAttempts, errMsg),
	}
}

func (uc *RunInspectionUseCase) handlePermanentFailure(
	ctx context.Context,
	run *entity.Run,
	rawMsg []byte,
	errMsg string,
) error {
	run.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, run)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, run, uc.logger)

	metrics.RunsProcessedTotal.WithLabelValues("dlq").Inc()

	uc.notify(ctx, "Inspection failed",
		fmt.Sprintf("Inspection of video %s failed permanently (run %s).\nError: %s\n",
			run.VideoKey, run.ID, errMsg), uc.logger)

	return nil
}

func (uc *RunInspectionUseCase) publishStatus(ctx context.Context, run *entity.Run, log *zap.Logger) {
	statusMsg := entity.InspectionStatusMessage{
		RunID:        run.ID,
		UserID:       run.UserID,
		Status:       run.Status,
		VideoKey:     run.VideoKey,
		FrameCount:   run.FrameCount,
		ProductCount: run.ProductCount,
		NGCount:      run.NGCount,
		ErrorMessage: run.ErrorMessage,
		Attempt:      run.Attempt,
		MaxAttempts:  run.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// notify is fire and forget: delivery problems are logged by the notifier
// and never fail the run.
func (uc *RunInspectionUseCase) notify(ctx context.Context, subject, body string, log *zap.Logger) {
	if err := uc.notifier.Notify(ctx, subject, body); err != nil {
		log.Warn("notification delivery failed", zap.String("subject", subject), zap.Error(err))
	}
}
