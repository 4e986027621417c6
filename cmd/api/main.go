package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/eventfaces/internal/api"
	"github.com/your-org/eventfaces/internal/api/handlers"
	"github.com/your-org/eventfaces/internal/api/ws"
	"github.com/your-org/eventfaces/internal/config"
	"github.com/your-org/eventfaces/internal/events"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/observability"
	"github.com/your-org/eventfaces/internal/queue"
	"github.com/your-org/eventfaces/internal/storage"
	"github.com/your-org/eventfaces/internal/vision"
	"github.com/your-org/eventfaces/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting eventfaces API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Batch registry folds worker results into event results as they arrive.
	states := events.NewStateTracker()
	registry := events.NewRegistry(db, states)

	// Start result consumer: fold into the registry, broadcast progress.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create result consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeResults(ctx, "api-results", func(ctx context.Context, msg jetstream.Msg) error {
		var processed models.PhotoProcessed
		if err := json.Unmarshal(msg.Data(), &processed); err != nil {
			return err
		}

		final, err := registry.Record(ctx, processed)
		if err != nil {
			slog.Error("record photo result", "event_id", processed.EventID, "error", err)
			return err
		}

		evt := &dto.WSEvent{
			Type:    "photo_processed",
			EventID: processed.EventID,
			PhotoID: processed.PhotoID,
			Result:  processed.Result,
		}
		if processed.Error != "" {
			evt.Type = "photo_failed"
			evt.Result = nil
		}
		hub.BroadcastEvent(evt)

		if final != nil {
			hub.BroadcastEvent(&dto.WSEvent{
				Type:    "event_completed",
				EventID: final.EventID,
				Stats:   &final.Stats,
			})
		}

		return nil
	})
	if err != nil {
		slog.Warn("start result consumer", "error", err)
	}

	// Vision pipeline for enrollment, tagging and search. ONNX models are
	// optional; without them the hash pipeline still serves everything but
	// vector search.
	if cfg.Vision.ModelsDir != "" {
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			slog.Warn("onnx runtime init failed, falling back to hash pipeline", "error", err)
			cfg.Vision.ModelsDir = ""
		} else {
			defer ort.DestroyEnvironment()
		}
	}

	pipeline, err := vision.NewPipeline(cfg.Vision, db)
	if err != nil {
		slog.Error("init vision pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	var searchFn func(c *gin.Context, embedding []float32, threshold float64, limit int) ([]storage.SearchMatch, error)
	if cfg.Vision.ModelsDir != "" {
		searchFn = func(c *gin.Context, embedding []float32, threshold float64, limit int) ([]storage.SearchMatch, error) {
			return db.SearchSignatures(c.Request.Context(), embedding, threshold, limit)
		}
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Gallery:  db,
		Results:  db,
		States:   states,
		Registry: registry,
		MinIO:    minioStore,
		Hub:      hub,
		Publish: func(c *gin.Context, eventID string, task models.PhotoTask) error {
			return producer.PublishPhotoTask(c.Request.Context(), eventID, task)
		},
		Checks: map[string]handlers.Pinger{
			"postgres": db.Ping,
			"minio":    minioStore.Ping,
			"nats":     func(context.Context) error { return producer.Ping() },
		},
		EnrollFn: pipeline.EnrollFromBytes,
		TagFn:    pipeline.Processor.ExtractSignature,
		SearchFn: searchFn,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
