// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	filesConverted    *prometheus.CounterVec
	fileDuration      *prometheus.HistogramVec
	bandsConverted    *prometheus.CounterVec
	bandsSkipped      *prometheus.CounterVec
	datasetsStaged    *prometheus.CounterVec
	datasetsReady     prometheus.Gauge
	uploads           *prometheus.CounterVec
	uploadDuration    prometheus.Histogram
	engineInvocations *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "cogstream"
	}

	return &Collector{
		filesConverted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_converted_total",
				Help:      "Total number of source files processed",
			},
			[]string{"product", "status"},
		),

		fileDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Conversion duration per source file in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"product"},
		),

		bandsConverted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bands_converted_total",
				Help:      "Total number of bands converted",
			},
			[]string{"product", "status"},
		),

		bandsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bands_skipped_total",
				Help:      "Total number of bands skipped because the output already existed",
			},
			[]string{"product"},
		),

		datasetsStaged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datasets_staged_total",
				Help:      "Total number of datasets promoted to the upload area",
			},
			[]string{"product"},
		),

		datasetsReady: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "datasets_ready",
				Help:      "Number of datasets currently awaiting upload",
			},
		),

		uploads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Total number of dataset uploads",
			},
			[]string{"status"},
		),

		uploadDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Dataset upload duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),

		engineInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_invocations_total",
				Help:      "Total number of raster engine tool invocations",
			},
			[]string{"operation", "status"},
		),
	}
}

// IncFilesConverted increments the converted source file counter.
func (c *Collector) IncFilesConverted(product string, success bool) {
	c.filesConverted.WithLabelValues(product, statusLabel(success)).Inc()
}

// ObserveFileDuration records the conversion duration of one source file.
func (c *Collector) ObserveFileDuration(product string, duration time.Duration) {
	c.fileDuration.WithLabelValues(product).Observe(duration.Seconds())
}

// IncBandsConverted increments the converted band counter.
func (c *Collector) IncBandsConverted(product string, success bool) {
	c.bandsConverted.WithLabelValues(product, statusLabel(success)).Inc()
}

// IncBandsSkipped increments the skipped band counter.
func (c *Collector) IncBandsSkipped(product string) {
	c.bandsSkipped.WithLabelValues(product).Inc()
}

// IncDatasetsStaged increments the staged dataset counter.
func (c *Collector) IncDatasetsStaged(product string) {
	c.datasetsStaged.WithLabelValues(product).Inc()
}

// SetDatasetsReady sets the number of datasets awaiting upload.
func (c *Collector) SetDatasetsReady(count int) {
	c.datasetsReady.Set(float64(count))
}

// IncUploads increments the dataset upload counter.
func (c *Collector) IncUploads(success bool) {
	c.uploads.WithLabelValues(statusLabel(success)).Inc()
}

// ObserveUploadDuration records the duration of one dataset upload.
func (c *Collector) ObserveUploadDuration(duration time.Duration) {
	c.uploadDuration.Observe(duration.Seconds())
}

// IncEngineInvocations increments the raster engine invocation counter.
func (c *Collector) IncEngineInvocations(operation string, success bool) {
	c.engineInvocations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
