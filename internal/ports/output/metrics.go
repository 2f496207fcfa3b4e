package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncFilesConverted increments the converted source file counter.
	IncFilesConverted(product string, success bool)

	// ObserveFileDuration records the conversion duration of one source file.
	ObserveFileDuration(product string, duration time.Duration)

	// IncBandsConverted increments the converted band counter.
	IncBandsConverted(product string, success bool)

	// IncBandsSkipped increments the skipped band counter (already present).
	IncBandsSkipped(product string)

	// IncDatasetsStaged increments the datasets promoted to the upload area.
	IncDatasetsStaged(product string)

	// SetDatasetsReady sets the number of datasets awaiting upload.
	SetDatasetsReady(count int)

	// IncUploads increments the dataset upload counter.
	IncUploads(success bool)

	// ObserveUploadDuration records the duration of one dataset upload.
	ObserveUploadDuration(duration time.Duration)

	// IncEngineInvocations increments the raster engine invocation counter.
	IncEngineInvocations(operation string, success bool)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncFilesConverted implements MetricsCollector.
func (n *NoOpMetrics) IncFilesConverted(_ string, _ bool) {}

// ObserveFileDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveFileDuration(_ string, _ time.Duration) {}

// IncBandsConverted implements MetricsCollector.
func (n *NoOpMetrics) IncBandsConverted(_ string, _ bool) {}

// IncBandsSkipped implements MetricsCollector.
func (n *NoOpMetrics) IncBandsSkipped(_ string) {}

// IncDatasetsStaged implements MetricsCollector.
func (n *NoOpMetrics) IncDatasetsStaged(_ string) {}

// SetDatasetsReady implements MetricsCollector.
func (n *NoOpMetrics) SetDatasetsReady(_ int) {}

// IncUploads implements MetricsCollector.
func (n *NoOpMetrics) IncUploads(_ bool) {}

// ObserveUploadDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveUploadDuration(_ time.Duration) {}

// IncEngineInvocations implements MetricsCollector.
func (n *NoOpMetrics) IncEngineInvocations(_ string, _ bool) {}
