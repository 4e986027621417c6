package models

import "time"

// PhotoTask is the message published to NATS for worker processing. Index is
// the photo's position in the submitted batch; the aggregation fold observes
// results in Index order regardless of worker completion order.
type PhotoTask struct {
	EventID     string    `json:"event_id"`
	PhotoID     string    `json:"photo_id"`
	Index       int       `json:"index"`
	Total       int       `json:"total"`
	ObjectKey   string    `json:"object_key"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// PhotoProcessed is published by a worker for every attempted photo. Exactly
// one of Result and Error is meaningful: a photo whose processing failed
// carries the error text and no result, and still counts as attempted.
type PhotoProcessed struct {
	EventID string       `json:"event_id"`
	PhotoID string       `json:"photo_id"`
	Index   int          `json:"index"`
	Total   int          `json:"total"`
	Result  *PhotoResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}
