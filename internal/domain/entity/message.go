package entity

import "github.com/google/uuid"

// InspectionRequestMessage is the inbound message from the inspection.requests queue.
type InspectionRequestMessage struct {
	RunID    uuid.UUID `json:"run_id"`
	UserID   string    `json:"user_id"`
	VideoKey string    `json:"video_key"`
}

// InspectionStatusMessage is the outbound message published to the inspection.status queue.
type InspectionStatusMessage struct {
	RunID        uuid.UUID `json:"run_id"`
	UserID       string    `json:"user_id"`
	Status       RunStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	FrameCount   int       `json:"frame_count,omitempty"`
	ProductCount int       `json:"product_count,omitempty"`
	NGCount      int       `json:"ng_count,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
