package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/input"
	"github.com/rasterd/cogstream/internal/ports/output"
	"golang.org/x/sync/errgroup"
)

// Scheduler fans a batch of source files across a bounded worker pool and
// stages the produced datasets for upload.
type Scheduler struct {
	converter *Converter
	staging   output.StagingArea
	policies  map[string]domain.Policy
	metrics   output.MetricsCollector
	logger    *slog.Logger
	workers   int
}

// NewScheduler creates a new conversion scheduler.
func NewScheduler(
	converter *Converter,
	staging output.StagingArea,
	policies map[string]domain.Policy,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	workers int,
) *Scheduler {
	if workers <= 0 {
		workers = 4
	}

	return &Scheduler{
		converter: converter,
		staging:   staging,
		policies:  policies,
		metrics:   metrics,
		logger:    logger,
		workers:   workers,
	}
}

// ConvertBatch converts a list of source files across the worker pool and
// stages the produced datasets. A file failure is recorded and the run
// continues; there are no retries.
func (s *Scheduler) ConvertBatch(ctx context.Context, req input.ConvertRequest) (*input.BatchResult, error) {
	policy, ok := s.policies[req.Product]
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.Product, domain.ErrProductNotFound)
	}
	if err := s.staging.Ensure(); err != nil {
		return nil, err
	}

	result := &input.BatchResult{
		RunID: uuid.New().String(),
		Total: len(req.Files),
	}
	logger := s.logger.With("run_id", result.RunID, "product", req.Product)
	logger.Info("conversion run started", "files", result.Total, "workers", s.workers)

	filter := domain.TimeFilter{Year: req.Year, Month: req.Month}
	completed := 0
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range req.Files {
		g.Go(func() error {
			fileResult, err := s.converter.ConvertFile(gctx, policy, path, filter)
			staged := 0
			if err == nil {
				staged = s.stageDatasets(policy, fileResult, logger)
			}

			mu.Lock()
			defer mu.Unlock()
			completed++
			if err != nil {
				s.metrics.IncFilesConverted(req.Product, false)
				result.Failed++
				result.FailedFiles = append(result.FailedFiles, path)
				logger.Error("file conversion failed",
					"path", path,
					"completed", completed,
					"total", result.Total,
					"error", err,
				)
				return nil
			}
			s.metrics.IncFilesConverted(req.Product, true)
			result.Converted++
			result.DatasetsStaged += staged
			logger.Info("file converted",
				"path", path,
				"completed", completed,
				"total", result.Total,
				"datasets", len(fileResult.Datasets),
			)
			return nil
		})
	}
	_ = g.Wait() // workers record their own failures

	sort.Strings(result.FailedFiles)
	logger.Info("conversion run finished",
		"converted", result.Converted,
		"failed", result.Failed,
		"staged", result.DatasetsStaged,
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// stageDatasets writes the upload marker and promotes every non-held dataset
// a file produced, returning the number staged. The marker must land before
// the dataset becomes visible to the upload watcher.
func (s *Scheduler) stageDatasets(policy domain.Policy, res *FileResult, logger *slog.Logger) int {
	staged := 0
	for _, dataset := range res.Datasets {
		if dataset.Held {
			logger.Warn("dataset held in working area",
				"prefix", dataset.Prefix, "failed_bands", dataset.BandsFailed)
			continue
		}

		destination, err := policy.DestinationForPrefix(dataset.Prefix)
		if err != nil {
			logger.Error("could not resolve upload destination",
				"prefix", dataset.Prefix, "error", err)
			continue
		}
		if err := s.staging.WriteMarker(dataset.Prefix, destination); err != nil {
			logger.Error("could not write upload marker",
				"prefix", dataset.Prefix, "error", err)
			continue
		}
		if err := s.staging.Promote(dataset.Prefix); err != nil {
			logger.Error("could not promote dataset",
				"prefix", dataset.Prefix, "error", err)
			continue
		}
		s.metrics.IncDatasetsStaged(policy.Product)
		staged++
	}
	return staged
}
