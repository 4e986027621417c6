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

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/eventfaces/internal/config"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/observability"
	"github.com/your-org/eventfaces/internal/queue"
	"github.com/your-org/eventfaces/internal/storage"
	"github.com/your-org/eventfaces/internal/vision"
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

	slog.Info("starting eventfaces photo worker",
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime when models are configured
	if cfg.Vision.ModelsDir != "" {
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			slog.Error("init onnx runtime", "error", err)
			os.Exit(1)
		}
		defer ort.DestroyEnvironment()
	}

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Initialize vision pipeline
	pipeline, err := vision.NewPipeline(cfg.Vision, db)
	if err != nil {
		slog.Error("init vision pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	slog.Info("vision pipeline initialized")

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming photo tasks
	err = consumer.ConsumePhotoTasks(ctx, "photo-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.PhotoTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal photo task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		processed := processPhoto(ctx, pipeline, minioStore, task)

		if err := producer.PublishResult(ctx, task.EventID, processed); err != nil {
			return fmt.Errorf("publish result for photo %s: %w", task.PhotoID, err)
		}

		observability.PhotosProcessed.Inc()
		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start photo consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// processPhoto runs one photo through the pipeline and builds the result
// message. Processing failures become a failed message rather than an error:
// the photo still counts toward the batch and never stalls it.
func processPhoto(ctx context.Context, pipeline *vision.Pipeline, minioStore *storage.MinIOStore, task models.PhotoTask) models.PhotoProcessed {
	processed := models.PhotoProcessed{
		EventID: task.EventID,
		PhotoID: task.PhotoID,
		Index:   task.Index,
		Total:   task.Total,
	}

	data, err := minioStore.GetObject(ctx, task.ObjectKey)
	if err != nil {
		processed.Error = "fetch photo: " + err.Error()
		return processed
	}

	img, err := vision.DecodeImage(data)
	if err != nil {
		processed.Error = "decode photo: " + err.Error()
		return processed
	}

	result, err := pipeline.Processor.Process(ctx, task.PhotoID, img)
	if err != nil {
		processed.Error = err.Error()
		return processed
	}

	// Move previews to object storage; the result message carries keys, not
	// image bytes.
	for i := range result.Unrecognized {
		face := &result.Unrecognized[i]
		key := storage.PreviewKey(task.EventID, face.FaceID)
		if err := minioStore.PutObject(ctx, key, face.Preview, "image/jpeg"); err != nil {
			slog.Warn("store preview", "face_id", face.FaceID, "error", err)
		} else {
			face.PreviewKey = key
		}
		face.Preview = nil
	}

	processed.Result = &result
	return processed
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
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
