package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "frames_read_total",
		Help:      "Total number of frames read from the video source",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through recognition",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "faces_recognized_total",
		Help:      "Total number of faces matched to a known person",
	})

	UnknownFaces = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "unknown_faces_total",
		Help:      "Total number of faces with no match within tolerance",
	})

	DetectionsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "detections_suppressed_total",
		Help:      "Detections dropped by the notification cooldown",
	}, []string{"kind"})

	VisitsLogged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "visits_logged_total",
		Help:      "Total number of visits written to the store",
	})

	SightingsLogged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "sightings_logged_total",
		Help:      "Total number of unknown sightings written to the store",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facewatch",
		Name:      "inference_duration_seconds",
		Help:      "Duration of recognition stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "notifications_sent_total",
		Help:      "Notification deliveries by channel and outcome",
	}, []string{"channel", "status"})

	SourceConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facewatch",
		Name:      "source_connected",
		Help:      "1 while the video source is open",
	})

	SourceReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "source_reconnects_total",
		Help:      "Number of video source reconnect attempts",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facewatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facewatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
