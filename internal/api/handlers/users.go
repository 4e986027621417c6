package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/storage"
	"github.com/your-org/eventfaces/internal/vision"
	"github.com/your-org/eventfaces/pkg/dto"
)

type UserHandler struct {
	gallery gallery.Gallery
	minio   *storage.MinIOStore
	// SignatureFn extracts an enrollment signature from photo bytes (largest
	// located face). Set after the vision pipeline is initialized.
	SignatureFn func(imageData []byte) (models.Signature, models.Region, error)
}

func NewUserHandler(g gallery.Gallery, minio *storage.MinIOStore) *UserHandler {
	return &UserHandler{gallery: g, minio: minio}
}

// Enroll accepts a multipart enrollment photo, extracts the face signature
// and registers the user.
func (h *UserHandler) Enroll(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	userID := c.PostForm("user_id")

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

	sig, _, err := h.SignatureFn(imageData)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in image"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	userID, err = h.gallery.Enroll(c.Request.Context(), userID, name, sig)
	if err != nil {
		if errors.Is(err, gallery.ErrDuplicateUser) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already enrolled"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Keep the enrollment photo for audit; losing it doesn't fail enrollment.
	if h.minio != nil {
		key := "enrollment/" + userID + ".jpg"
		_ = h.minio.PutObject(c.Request.Context(), key, imageData, "image/jpeg")
	}

	c.JSON(http.StatusCreated, dto.EnrollResponse{UserID: userID, Name: name})
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.gallery.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, dto.UserResponse{
			UserID:     u.UserID,
			Name:       u.Name,
			EnrolledAt: u.EnrolledAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": resp, "total": len(resp)})
}

func (h *UserHandler) Delete(c *gin.Context) {
	userID := c.Param("id")

	if err := h.gallery.Remove(c.Request.Context(), userID); err != nil {
		if errors.Is(err, gallery.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
