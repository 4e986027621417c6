package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/eventfaces/internal/events"
	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/storage"
	"github.com/your-org/eventfaces/pkg/dto"
)

// PublishFn enqueues one photo task. Wired to the queue producer in main.
type PublishFn func(c *gin.Context, eventID string, task models.PhotoTask) error

type EventHandler struct {
	gallery  gallery.Gallery
	store    events.ResultStore
	states   *events.StateTracker
	registry *events.Registry
	minio    *storage.MinIOStore
	publish  PublishFn
	// SignatureFn extracts a face signature from preview bytes, for the tag
	// and search flows.
	SignatureFn func(imageData []byte) (models.Signature, error)
	// SearchFn runs a similarity search against the enrolled gallery. Nil
	// when the backing store has no vector index.
	SearchFn func(c *gin.Context, embedding []float32, threshold float64, limit int) ([]storage.SearchMatch, error)

	now func() time.Time
}

func NewEventHandler(
	g gallery.Gallery,
	store events.ResultStore,
	states *events.StateTracker,
	registry *events.Registry,
	minio *storage.MinIOStore,
	publish PublishFn,
) *EventHandler {
	return &EventHandler{
		gallery:  g,
		store:    store,
		states:   states,
		registry: registry,
		minio:    minio,
		publish:  publish,
		now:      time.Now,
	}
}

// SubmitPhotos uploads a batch of event photos to object storage and enqueues
// one task per photo. Responds 202; results arrive via the result endpoint
// and the WebSocket feed.
func (h *EventHandler) SubmitPhotos(c *gin.Context) {
	eventID := c.Param("id")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one photo is required"})
		return
	}

	submittedAt := h.now()
	photoIDs := make([]string, 0, len(files))
	tasks := make([]models.PhotoTask, 0, len(files))

	for i, fh := range files {
		file, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open upload: " + err.Error()})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + err.Error()})
			return
		}

		photoID := uuid.NewString()
		key := storage.PhotoKey(eventID, photoID)
		if err := h.minio.PutObject(c.Request.Context(), key, data, fh.Header.Get("Content-Type")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo: " + err.Error()})
			return
		}

		photoIDs = append(photoIDs, photoID)
		tasks = append(tasks, models.PhotoTask{
			EventID:     eventID,
			PhotoID:     photoID,
			Index:       i,
			Total:       len(files),
			ObjectKey:   key,
			SubmittedAt: submittedAt,
		})
	}

	h.registry.Begin(eventID, len(files))

	for _, task := range tasks {
		if err := h.publish(c, eventID, task); err != nil {
			slog.Error("publish photo task", "event_id", eventID, "photo_id", task.PhotoID, "error", err)
			h.registry.Abort(c.Request.Context(), eventID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue photo: " + err.Error()})
			return
		}
	}

	c.JSON(http.StatusAccepted, dto.SubmitPhotosResponse{
		EventID:         eventID,
		PhotosSubmitted: len(files),
		PhotoIDs:        photoIDs,
	})
}

func (h *EventHandler) Result(c *gin.Context) {
	eventID := c.Param("id")

	result, err := h.store.Get(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, events.ErrNoResult) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no result for event"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *EventHandler) Status(c *gin.Context) {
	eventID := c.Param("id")
	c.JSON(http.StatusOK, dto.EventStatusResponse{
		EventID: eventID,
		Status:  h.states.Status(eventID),
	})
}

// Preview serves the stored JPEG crop of an unrecognized face.
func (h *EventHandler) Preview(c *gin.Context) {
	eventID := c.Param("id")
	faceID := c.Param("faceId")

	data, err := h.minio.GetObject(c.Request.Context(), storage.PreviewKey(eventID, faceID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// TagFace assigns an unrecognized face to a user. With create_user set, the
// stored preview becomes the enrollment photo for a new user.
func (h *EventHandler) TagFace(c *gin.Context) {
	eventID := c.Param("id")
	faceID := c.Param("faceId")

	var req dto.TagFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	preview, err := h.minio.GetObject(c.Request.Context(), storage.PreviewKey(eventID, faceID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}

	if req.CreateUser {
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required when creating a user"})
			return
		}
		sig, err := h.SignatureFn(preview)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "extract signature: " + err.Error()})
			return
		}
		userID, err := h.gallery.Enroll(c.Request.Context(), req.UserID, req.Name, sig)
		if err != nil {
			if errors.Is(err, gallery.ErrDuplicateUser) {
				c.JSON(http.StatusConflict, gin.H{"error": "user already enrolled"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user_id": userID, "face_id": faceID})
		return
	}

	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or create_user is required"})
		return
	}
	if _, err := h.gallery.GetSignature(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, gallery.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "face_id": faceID})
}

// Search finds enrolled users similar to the uploaded face photo. Requires
// the vector index; returns 400 when embeddings are not configured.
func (h *EventHandler) Search(c *gin.Context) {
	if h.SearchFn == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "similarity search is not configured"})
		return
	}

	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read photo: " + err.Error()})
		return
	}

	sig, err := h.SignatureFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "extract signature: " + err.Error()})
		return
	}
	if len(sig.Vec) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "similarity search requires embedding models"})
		return
	}

	threshold := 0.5
	if v := c.PostForm("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = f
		}
	}
	limit := 10
	if v := c.PostForm("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	matches, err := h.SearchFn(c, sig.Vec, threshold, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches, "total": len(matches)})
}
