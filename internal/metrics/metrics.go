// Package metrics provides Prometheus metrics for the upload service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric exported by the service.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// SlotRequests counts slot requests by outcome ("granted" or a rejected dimension).
	SlotRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "httpupload_slot_requests_total",
		Help: "Slot requests by result",
	}, []string{"result"})

	// Uploads counts PUT attempts by result.
	Uploads = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "httpupload_uploads_total",
		Help: "Upload attempts by result",
	}, []string{"result"})

	// UploadedBytes counts bytes of successfully fulfilled slots.
	UploadedBytes = factory.NewCounter(prometheus.CounterOpts{
		Name: "httpupload_uploaded_bytes_total",
		Help: "Bytes stored by successful uploads",
	})

	// Downloads counts GET requests served by the share endpoint.
	Downloads = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "httpupload_downloads_total",
		Help: "Download requests by result",
	}, []string{"result"})

	// CleanupDeleted counts records removed by cleanup, by kind ("reserved" or "expired").
	CleanupDeleted = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "httpupload_cleanup_deleted_total",
		Help: "Slot records deleted by cleanup",
	}, []string{"kind"})

	// CleanupFailures counts records cleanup could not remove.
	CleanupFailures = factory.NewCounter(prometheus.CounterOpts{
		Name: "httpupload_cleanup_failures_total",
		Help: "Slot records cleanup failed to remove",
	})

	// CleanupDuration observes the duration of cleanup runs.
	CleanupDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "httpupload_cleanup_duration_seconds",
		Help:    "Duration of cleanup runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	// HTTPRequests counts HTTP requests by route and status.
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "httpupload_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes HTTP request latency by route.
	HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "httpupload_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
