package models

import "time"

// RecognizedFace is a region matched to an enrolled user.
type RecognizedFace struct {
	UserID     string  `json:"user_id"`
	UserName   string  `json:"user_name"`
	Confidence float64 `json:"confidence"`
	Region     Region  `json:"region"`
}

// UnrecognizedFace is a region no enrolled user matched. Preview is a JPEG
// crop of the region kept for later manual tagging; PreviewKey is set once the
// preview has been uploaded to object storage.
type UnrecognizedFace struct {
	FaceID     string `json:"face_id"`
	Region     Region `json:"region"`
	Preview    []byte `json:"preview,omitempty"`
	PreviewKey string `json:"preview_key,omitempty"`
	PhotoID    string `json:"photo_id,omitempty"`
}

// PhotoResult is the outcome of processing one photo. Every located region
// yields exactly one outcome, except regions whose signature extraction
// failed, which are counted in SkippedRegions and contribute nothing.
type PhotoResult struct {
	PhotoID        string             `json:"photo_id"`
	Recognized     []RecognizedFace   `json:"recognized"`
	Unrecognized   []UnrecognizedFace `json:"unrecognized"`
	SkippedRegions int                `json:"skipped_regions,omitempty"`
	TotalFaces     int                `json:"total_faces"`
}

// UserPhoto is one appearance of a user in an event photo.
type UserPhoto struct {
	PhotoID    string  `json:"photo_id"`
	Confidence float64 `json:"confidence"`
	Region     Region  `json:"region"`
}

// OrganizerPhoto is an event photo that contained at least one face.
type OrganizerPhoto struct {
	PhotoID    string `json:"photo_id"`
	TotalFaces int    `json:"total_faces"`
}

// EventStats are pure sums over the folded photo results.
type EventStats struct {
	TotalFaces        int `json:"total_faces"`
	RecognizedCount   int `json:"recognized_count"`
	UnrecognizedCount int `json:"unrecognized_count"`
	SkippedRegions    int `json:"skipped_regions,omitempty"`
}

// EventResult is the aggregate of one processing run over an event's photo
// batch. A re-run for the same event replaces the stored result wholesale.
type EventResult struct {
	EventID           string                 `json:"event_id"`
	ProcessedAt       time.Time              `json:"processed_at"`
	UserPhotos        map[string][]UserPhoto `json:"user_photos"`
	UnrecognizedFaces []UnrecognizedFace     `json:"unrecognized_faces"`
	OrganizerPhotos   []OrganizerPhoto       `json:"organizer_photos"`
	PhotosAttempted   int                    `json:"photos_attempted"`
	PhotosProcessed   int                    `json:"photos_processed"`
	Stats             EventStats             `json:"stats"`
}

// EventStatus is the lifecycle state of an event's processing run.
type EventStatus string

const (
	EventNotProcessed EventStatus = "not_processed"
	EventProcessing   EventStatus = "processing"
	EventCompleted    EventStatus = "completed"
)
