package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/eventfaces/internal/config"
	"github.com/your-org/eventfaces/internal/events"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/observability"
	"github.com/your-org/eventfaces/internal/queue"
	"github.com/your-org/eventfaces/internal/storage"
	"github.com/your-org/eventfaces/internal/vision"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// collectPhotos lists image files under dir in lexical order, so repeated
// imports of the same directory submit photos in the same order.
func collectPhotos(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// pruneEvent deletes the stored photos and previews for an event.
func pruneEvent(ctx context.Context, minioStore *storage.MinIOStore, eventID string) error {
	for _, prefix := range []string{"photos/" + eventID + "/", "previews/" + eventID + "/"} {
		keys, err := minioStore.ListObjects(ctx, prefix)
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := minioStore.DeleteObjects(ctx, keys); err != nil {
			return fmt.Errorf("delete %s: %w", prefix, err)
		}
		slog.Info("pruned objects", "prefix", prefix, "deleted", len(keys))
	}
	return nil
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	eventID := flag.String("event", "", "event ID to import photos into")
	dir := flag.String("dir", "", "directory of photos to import")
	prune := flag.Bool("prune", false, "delete stored photos and previews for the event instead of importing")
	local := flag.Bool("local", false, "process photos in-process and store the result directly, bypassing the queue")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if *eventID == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -event <id> -dir <photos> | importer -event <id> -prune")
		os.Exit(2)
	}

	ctx := context.Background()

	if *local {
		if *dir == "" {
			fmt.Fprintln(os.Stderr, "usage: importer -local -event <id> -dir <photos>")
			os.Exit(2)
		}
		if err := runLocal(ctx, cfg, *eventID, *dir); err != nil {
			slog.Error("local import", "event_id", *eventID, "error", err)
			os.Exit(1)
		}
		return
	}

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	if *prune {
		if err := pruneEvent(ctx, minioStore, *eventID); err != nil {
			slog.Error("prune event", "event_id", *eventID, "error", err)
			os.Exit(1)
		}
		return
	}

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -event <id> -dir <photos>")
		os.Exit(2)
	}

	paths, err := collectPhotos(*dir)
	if err != nil {
		slog.Error("scan photo directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		slog.Error("no photos found", "dir", *dir)
		os.Exit(1)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	slog.Info("importing photos", "event_id", *eventID, "count", len(paths))

	submittedAt := time.Now()
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("read photo", "path", path, "error", err)
			os.Exit(1)
		}

		photoID := uuid.NewString()
		key := storage.PhotoKey(*eventID, photoID)
		if err := minioStore.PutObject(ctx, key, data, "image/jpeg"); err != nil {
			slog.Error("upload photo", "path", path, "error", err)
			os.Exit(1)
		}

		task := models.PhotoTask{
			EventID:     *eventID,
			PhotoID:     photoID,
			Index:       i,
			Total:       len(paths),
			ObjectKey:   key,
			SubmittedAt: submittedAt,
		}
		if err := producer.PublishPhotoTask(ctx, *eventID, task); err != nil {
			slog.Error("publish photo task", "photo_id", photoID, "error", err)
			os.Exit(1)
		}

		slog.Info("photo submitted", "photo_id", photoID, "index", i, "path", path)
	}

	slog.Info("import complete", "event_id", *eventID, "photos", len(paths))
}

// runLocal runs the batch synchronously on an in-process worker pool and
// stores the aggregate straight into Postgres, with no queue or object
// storage involved. Previews stay inline in the stored result.
func runLocal(ctx context.Context, cfg *config.Config, eventID, dir string) error {
	paths, err := collectPhotos(dir)
	if err != nil {
		return fmt.Errorf("scan photo directory: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no photos found in %s", dir)
	}

	if cfg.Vision.ModelsDir != "" {
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("init onnx runtime: %w", err)
		}
		defer ort.DestroyEnvironment()
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pipeline, err := vision.NewPipeline(cfg.Vision, db)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	photos := make([]events.Photo, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read photo %s: %w", path, err)
		}
		img, err := vision.DecodeImage(data)
		if err != nil {
			slog.Warn("skip undecodable photo", "path", path, "error", err)
			continue
		}
		photos = append(photos, events.Photo{ID: uuid.NewString(), Image: img})
	}
	if len(photos) == 0 {
		return fmt.Errorf("no decodable photos in %s", dir)
	}

	slog.Info("processing photos locally", "event_id", eventID, "count", len(photos), "workers", cfg.Vision.WorkerCount)

	runner := events.NewRunner(pipeline.Processor, db, events.NewStateTracker(), cfg.Vision.WorkerCount)
	result, err := runner.Run(ctx, eventID, photos)
	if err != nil {
		return err
	}

	slog.Info("local import complete",
		"event_id", eventID,
		"attempted", result.PhotosAttempted,
		"processed", result.PhotosProcessed,
		"faces", result.Stats.TotalFaces,
		"recognized", result.Stats.RecognizedCount,
	)
	return nil
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
