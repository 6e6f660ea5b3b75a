package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "recognitions_total",
		Help:      "Total number of recognition requests by policy",
	}, []string{"policy"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_recognized_total",
		Help:      "Total number of faces matched to an enrolled student",
	})

	SpoofRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "spoof_rejected_total",
		Help:      "Total number of faces that failed the liveness check",
	})

	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "attendance_marks_total",
		Help:      "Attendance mark attempts by outcome",
	}, []string{"outcome"})

	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "enrollments_total",
		Help:      "Enrollment attempts by outcome",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "inference_duration_seconds",
		Help:      "Duration of recognition pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	CachedSignatures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attend",
		Name:      "cached_signatures",
		Help:      "Number of enrolled signatures held in the matcher cache",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attend",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
