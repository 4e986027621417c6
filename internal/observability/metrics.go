package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventfaces",
		Name:      "photos_processed_total",
		Help:      "Total number of photos processed",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventfaces",
		Name:      "faces_detected_total",
		Help:      "Total number of face regions located",
	})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventfaces",
		Name:      "faces_recognized_total",
		Help:      "Total number of faces matched to enrolled users",
	})

	FacesUnrecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventfaces",
		Name:      "faces_unrecognized_total",
		Help:      "Total number of faces no enrolled user matched",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventfaces",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventfaces",
		Name:      "queue_depth",
		Help:      "Number of pending photo tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventfaces",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventfaces",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
