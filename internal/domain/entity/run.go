package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// Run is one inspection of one uploaded video.
type Run struct {
	ID           uuid.UUID
	UserID       string
	VideoKey     string
	Status       RunStatus
	FrameCount   int
	ProductCount int
	NGCount      int
	Attempt      int
	MaxAttempts  int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewRun(userID, videoKey string, maxAttempts int) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		Status:      RunStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Run) MarkProcessing() {
	r.Status = RunStatusProcessing
	r.Attempt++
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) MarkCompleted(frameCount, productCount, ngCount int) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.FrameCount = frameCount
	r.ProductCount = productCount
	r.NGCount = ngCount
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *Run) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) CanRetry() bool {
	return r.Attempt < r.MaxAttempts
}
