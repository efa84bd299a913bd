package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesIdentified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "frames_identified_total",
		Help:      "Total number of camera frames processed by the identify path",
	}, []string{"outcome"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected in processed frames",
	})

	FacesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "faces_matched_total",
		Help:      "Total number of faces matched to a registered user",
	})

	RecognitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memento",
		Name:      "recognition_duration_seconds",
		Help:      "Duration of face index backend calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"stage"})

	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "reconcile_runs_total",
		Help:      "Total number of reconciliation passes executed",
	})

	ReconcileEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "reconcile_events_total",
		Help:      "Events processed by the reconciler, by outcome",
	}, []string{"outcome"})

	ReconcileFacesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "reconcile_faces_indexed_total",
		Help:      "Faces indexed into event collections by the reconciler",
	})

	ReconcileFacesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memento",
		Name:      "reconcile_faces_evicted_total",
		Help:      "Faces removed from event collections after consent revocation",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memento",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "memento",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
