// Package metrics provides Prometheus metrics for the media server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediakit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Object store metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediakit_storage_operation_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_storage_operations_total",
			Help: "Total object store operations",
		},
		[]string{"operation", "status"},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_uploads_total",
			Help: "Total upload requests by media class",
		},
		[]string{"class", "status"},
	)

	uploadBytesOriginal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediakit_upload_bytes_original_total",
			Help: "Total bytes received for upload before compression",
		},
	)

	uploadBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediakit_upload_bytes_stored_total",
			Help: "Total bytes written to the object store",
		},
	)

	// Compression metrics
	compressionAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediakit_compression_attempts",
			Help:    "Re-encode attempts per compressed image",
			Buckets: []float64{1, 2, 3, 4, 5, 6},
		},
	)

	compressionQuality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediakit_compression_final_quality",
			Help:    "Final quality chosen by the adaptive compressor",
			Buckets: []float64{40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Deletion metrics
	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_deletes_total",
			Help: "Total delete operations",
		},
		[]string{"status"},
	)

	bulkFailedItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediakit_bulk_failed_items_total",
			Help: "Total items that failed inside bulk or recursive deletes",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStorageOperation records one object store call.
func RecordStorageOperation(operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordUpload records an upload request outcome.
func RecordUpload(class string, success bool, originalBytes, storedBytes int64) {
	status := "success"
	if !success {
		status = "error"
	}
	uploadsTotal.WithLabelValues(class, status).Inc()
	if success {
		uploadBytesOriginal.Add(float64(originalBytes))
		uploadBytesStored.Add(float64(storedBytes))
	}
}

// RecordCompression records the outcome of one adaptive compression run.
func RecordCompression(quality, attempts int) {
	compressionQuality.Observe(float64(quality))
	compressionAttempts.Observe(float64(attempts))
}

// RecordDelete records a single delete outcome.
func RecordDelete(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	deletesTotal.WithLabelValues(status).Inc()
}

// RecordBulkFailures records items that failed inside an aggregate delete.
func RecordBulkFailures(count int) {
	bulkFailedItemsTotal.Add(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
