package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/input"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// WorklistService computes the source files still needing conversion from
// the catalog index, optionally subtracting what the remote store already
// holds.
type WorklistService struct {
	catalog       output.Catalog
	inventory     output.Inventory
	engine        output.RasterEngine
	policies      map[string]domain.Policy
	logger        *slog.Logger
	engineOptions output.RuntimeConfig
}

// NewWorklistService creates a new work-list service.
func NewWorklistService(
	catalog output.Catalog,
	inventory output.Inventory,
	engine output.RasterEngine,
	policies map[string]domain.Policy,
	logger *slog.Logger,
	engineOptions output.RuntimeConfig,
) *WorklistService {
	return &WorklistService{
		catalog:       catalog,
		inventory:     inventory,
		engine:        engine,
		policies:      policies,
		logger:        logger,
		engineOptions: engineOptions,
	}
}

// List returns the indexed source file paths still needing conversion,
// sorted. With DiffRemote, files whose datasets are all present in the
// remote store are dropped; undecidable files are kept for the converter to
// settle.
func (s *WorklistService) List(ctx context.Context, req input.WorklistRequest) ([]string, error) {
	policy, ok := s.policies[req.Product]
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.Product, domain.ErrProductNotFound)
	}

	paths, err := s.catalog.DatasetPaths(ctx, output.CatalogQuery{
		Product: req.Product,
		Year:    req.Year,
		Month:   req.Month,
	})
	if err != nil {
		return nil, err
	}
	if !req.DiffRemote || len(paths) == 0 {
		return paths, nil
	}

	uploaded, err := s.inventory.DatasetPrefixes(ctx, policy.BucketName(), policy.AWSDir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("remote inventory loaded",
		"product", req.Product, "datasets", len(uploaded))

	filter := domain.TimeFilter{Year: req.Year, Month: req.Month}
	remaining := make([]string, 0, len(paths))
	for _, path := range paths {
		needed, err := s.fileNeeded(ctx, policy, path, uploaded, filter, req.Deep)
		if err != nil {
			s.logger.Warn("could not compare source against remote",
				"path", path, "error", err)
			remaining = append(remaining, path)
			continue
		}
		if needed {
			remaining = append(remaining, path)
		}
	}
	s.logger.Info("work list computed",
		"product", req.Product, "indexed", len(paths), "remaining", len(remaining))
	return remaining, nil
}

// fileNeeded reports whether a source file still has datasets missing from
// the remote store. Dataset-mode files carry many time slices, so only deep
// inspection gives the exact answer; without it the file's own time token
// stands in for its first slice.
func (s *WorklistService) fileNeeded(ctx context.Context, policy domain.Policy, path string, uploaded map[string]struct{}, filter domain.TimeFilter, deep bool) (bool, error) {
	identity, err := policy.ResolveSourceIdentity(path)
	if err != nil {
		return false, err
	}

	if policy.TimeMode != domain.TimeModeDataset {
		slices, err := policy.EnumerateSlices(identity, nil, domain.TimeFilter{})
		if err != nil {
			return false, err
		}
		_, ok := uploaded[slices[0].Prefix]
		return !ok, nil
	}

	if !deep {
		// The file name's own time token stands in for its first slice.
		token := domain.ExtractTokenIdentity(path)
		if token.Time == "" {
			return true, nil
		}
		first := domain.TileIdentity{X: identity.X, Y: identity.Y, Time: token.Time}
		_, ok := uploaded[policy.PrefixFor(first)]
		return !ok, nil
	}

	info, err := s.engine.Inspect(ctx, path, s.engineOptions)
	if err != nil {
		return false, err
	}
	slices, err := policy.EnumerateSlices(identity, info.Timestamps, filter)
	if err != nil {
		return false, err
	}
	if len(slices) == 0 {
		return false, nil
	}
	for _, slice := range slices {
		if _, ok := uploaded[slice.Prefix]; !ok {
			return true, nil
		}
	}
	return false, nil
}
