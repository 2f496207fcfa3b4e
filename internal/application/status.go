package application

import (
	"context"

	"github.com/rasterd/cogstream/internal/ports/input"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// StatusService reports pipeline state for the ops endpoints.
type StatusService struct {
	staging  output.StagingArea
	uploader *Uploader
	version  string
}

// NewStatusService creates a new status service. The uploader is optional;
// pass nil when the watch loop is not running.
func NewStatusService(staging output.StagingArea, uploader *Uploader, version string) *StatusService {
	return &StatusService{
		staging:  staging,
		uploader: uploader,
		version:  version,
	}
}

// Healthy reports whether the staging area is usable.
func (s *StatusService) Healthy(ctx context.Context) bool {
	_, err := s.staging.Counts()
	return err == nil
}

// Status returns a snapshot of pipeline state.
func (s *StatusService) Status(ctx context.Context) input.StatusDetails {
	details := input.StatusDetails{
		Version:    s.version,
		Components: map[string]string{},
	}

	counts, err := s.staging.Counts()
	if err == nil {
		details.Healthy = true
		details.Components["staging"] = "ok"
		details.StateCounts = make(map[string]int, len(counts))
		for state, n := range counts {
			details.StateCounts[state.String()] = n
		}
	} else {
		details.Components["staging"] = "error"
	}

	if s.uploader != nil {
		details.Components["uploader"] = "running"
		details.LastProcessed = s.uploader.LastProcessed()
		details.ProcessedTotal = s.uploader.ProcessedTotal()
	}
	return details
}
