// Package input defines the primary/driving ports of the application.
package input

import (
	"context"
	"time"
)

// ConvertRequest describes one batch conversion run.
type ConvertRequest struct {
	Product string   // Product policy to convert under
	Files   []string // Source files to convert
	Year    int      // Optional time-slice filter
	Month   int      // Optional time-slice filter, requires Year
}

// BatchResult summarizes one completed conversion run.
type BatchResult struct {
	RunID          string   // Identifier stamped into the run's log records
	Total          int      // Files submitted
	Converted      int      // Files fully converted
	Failed         int      // Files that failed
	DatasetsStaged int      // Datasets promoted to the upload area
	FailedFiles    []string // Paths of failed files, resubmittable by name
}

// BatchConverter defines the primary port for batch conversion.
type BatchConverter interface {
	// ConvertBatch converts a list of source files across the worker pool
	// and stages the produced datasets for upload.
	ConvertBatch(ctx context.Context, req ConvertRequest) (*BatchResult, error)
}

// WorklistRequest describes one work-list enumeration.
type WorklistRequest struct {
	Product    string // Product to enumerate
	Year       int    // Optional year filter
	Month      int    // Optional month filter, requires Year
	DiffRemote bool   // Drop files whose datasets are already uploaded
	Deep       bool   // Open dataset-mode files to compare per-slice
}

// WorkLister defines the primary port for work-list generation.
type WorkLister interface {
	// List returns the source file paths still needing conversion, sorted.
	List(ctx context.Context, req WorklistRequest) ([]string, error)
}

// UploadWatcher defines the primary port for the upload watch loop.
type UploadWatcher interface {
	// Watch polls the upload staging area until the idle timeout elapses or
	// the context is canceled.
	Watch(ctx context.Context) error
}

// StatusReporter defines the primary port for operational status.
type StatusReporter interface {
	// Healthy reports whether the pipeline's staging area is usable.
	Healthy(ctx context.Context) bool

	// Status returns a snapshot of pipeline state.
	Status(ctx context.Context) StatusDetails
}

// StatusDetails contains a snapshot of pipeline state.
type StatusDetails struct {
	Healthy        bool              // Overall health status
	Version        string            // Build version
	StateCounts    map[string]int    // Dataset directories per lifecycle state
	LastProcessed  time.Time         // Most recent terminal disposition, zero when none
	ProcessedTotal int               // Datasets given a terminal disposition
	Components     map[string]string // Component statuses
}
