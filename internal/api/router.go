package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/eventfaces/internal/api/handlers"
	"github.com/your-org/eventfaces/internal/api/ws"
	"github.com/your-org/eventfaces/internal/auth"
	"github.com/your-org/eventfaces/internal/events"
	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	Gallery  gallery.Gallery
	Results  events.ResultStore
	States   *events.StateTracker
	Registry *events.Registry
	MinIO    *storage.MinIOStore
	Hub      *ws.Hub
	Publish  handlers.PublishFn
	Checks   map[string]handlers.Pinger
	// EnrollFn extracts an enrollment signature from image bytes (largest
	// located face), from the vision pipeline.
	EnrollFn func(imageData []byte) (models.Signature, models.Region, error)
	// TagFn extracts a signature from a stored preview crop.
	TagFn func(imageData []byte) (models.Signature, error)
	// SearchFn runs a vector similarity search; nil disables /v1/search.
	SearchFn func(c *gin.Context, embedding []float32, threshold float64, limit int) ([]storage.SearchMatch, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Users
	userH := handlers.NewUserHandler(cfg.Gallery, cfg.MinIO)
	userH.SignatureFn = cfg.EnrollFn
	v1.POST("/users", userH.Enroll)
	v1.GET("/users", userH.List)
	v1.DELETE("/users/:id", userH.Delete)

	// Events
	eventH := handlers.NewEventHandler(cfg.Gallery, cfg.Results, cfg.States, cfg.Registry, cfg.MinIO, cfg.Publish)
	eventH.SignatureFn = cfg.TagFn
	eventH.SearchFn = cfg.SearchFn
	v1.POST("/events/:id/photos", eventH.SubmitPhotos)
	v1.GET("/events/:id/result", eventH.Result)
	v1.GET("/events/:id/status", eventH.Status)
	v1.GET("/events/:id/faces/:faceId/preview", eventH.Preview)
	v1.POST("/events/:id/faces/:faceId/tag", eventH.TagFace)
	v1.POST("/search", eventH.Search)

	return r
}
