package dto

import "github.com/your-org/eventfaces/internal/models"

// SubmitPhotosResponse acknowledges an accepted batch.
type SubmitPhotosResponse struct {
	EventID         string   `json:"event_id"`
	PhotosSubmitted int      `json:"photos_submitted"`
	PhotoIDs        []string `json:"photo_ids"`
}

// EventStatusResponse reports the processing lifecycle state.
type EventStatusResponse struct {
	EventID string             `json:"event_id"`
	Status  models.EventStatus `json:"status"`
}

// TagFaceRequest assigns an unrecognized face to a user. Either UserID names
// an existing user, or CreateUser+Name enroll a new one from the stored
// preview.
type TagFaceRequest struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	CreateUser bool   `json:"create_user"`
}

// WSEvent is a WebSocket message for real-time batch progress.
type WSEvent struct {
	Type    string              `json:"type"` // photo_processed, photo_failed, event_completed
	EventID string              `json:"event_id"`
	PhotoID string              `json:"photo_id,omitempty"`
	Result  *models.PhotoResult `json:"result,omitempty"`
	Stats   *models.EventStats  `json:"stats,omitempty"`
}
