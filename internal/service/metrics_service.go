package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcome labels recorded on the uploads counter.
const (
	UploadOutcomeAccepted = "accepted"
	UploadOutcomeQuota    = "rejected_quota"
	UploadOutcomeInvalid  = "rejected_invalid"
	UploadOutcomeFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation for the gallery API.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	uploadsTotal        *prometheus.CounterVec
	processingDuration  prometheus.Histogram
	storeAppendDuration prometheus.Histogram
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photo_uploads_total",
		Help: "Upload attempts by outcome",
	}, []string{"outcome"})

	processingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photo_processing_seconds",
		Help:    "Time spent decoding and re-encoding uploaded images",
		Buckets: prometheus.DefBuckets,
	})

	storeAppendDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photo_index_append_seconds",
		Help:    "Time spent in the locked photo index append",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, uploadsTotal, processingDuration, storeAppendDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		uploadsTotal:        uploadsTotal,
		processingDuration:  processingDuration,
		storeAppendDuration: storeAppendDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveUpload counts an upload attempt by outcome.
func (m *MetricsService) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProcessing records image normalization timing.
func (m *MetricsService) ObserveProcessing(duration time.Duration) {
	if m == nil {
		return
	}
	m.processingDuration.Observe(duration.Seconds())
}

// ObserveStoreAppend records the locked index append timing.
func (m *MetricsService) ObserveStoreAppend(duration time.Duration) {
	if m == nil {
		return
	}
	m.storeAppendDuration.Observe(duration.Seconds())
}
