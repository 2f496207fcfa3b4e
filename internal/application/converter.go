// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// Converter turns one source file into cloud-optimized datasets under the
// WORKING area. Promotion to the upload area is the scheduler's job.
type Converter struct {
	engine  output.RasterEngine
	staging output.StagingArea
	metrics output.MetricsCollector
	logger  *slog.Logger
	cfg     ConverterConfig
}

// ConverterConfig holds the encoding parameters shared by all conversions.
type ConverterConfig struct {
	OverviewLevels []int
	BlockSize      int
	Profile        output.COGProfile
	EngineOptions  output.RuntimeConfig

	// ScratchDir is the parent for per-dataset scratch directories; the
	// system temp directory when empty.
	ScratchDir string

	// HoldOnBandFailure abandons a dataset's remaining bands after a band
	// failure and withholds it from promotion, instead of converting the
	// rest and shipping a partial dataset.
	HoldOnBandFailure bool
}

// NewConverter creates a new converter service.
func NewConverter(
	engine output.RasterEngine,
	staging output.StagingArea,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg ConverterConfig,
) *Converter {
	if len(cfg.OverviewLevels) == 0 {
		cfg.OverviewLevels = []int{2, 4, 8, 16, 32}
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 512
	}
	if cfg.Profile.Compress == "" {
		cfg.Profile.Compress = "DEFLATE"
	}
	if cfg.Profile.ZLevel == 0 {
		cfg.Profile.ZLevel = 9
	}
	if cfg.Profile.Predictor == 0 {
		cfg.Profile.Predictor = 2
	}
	if cfg.Profile.BlockSize == 0 {
		cfg.Profile.BlockSize = cfg.BlockSize
	}

	return &Converter{
		engine:  engine,
		staging: staging,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// DatasetOutcome describes one dataset a source file produced.
type DatasetOutcome struct {
	Prefix      string // Dataset prefix under the working area
	BandsFailed int    // Bands that failed to convert
	Held        bool   // Withheld from promotion by the failure policy
}

// FileResult describes the datasets one source file produced.
type FileResult struct {
	Path     string
	Datasets []DatasetOutcome
}

// ConvertFile converts every time slice of a source file into a dataset
// directory under WORKING. Existing outputs are kept, so re-running over the
// same input resumes instead of redoing work. Band failures are counted per
// dataset; any other failure aborts the file.
func (s *Converter) ConvertFile(ctx context.Context, policy domain.Policy, path string, filter domain.TimeFilter) (*FileResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveFileDuration(policy.Product, time.Since(start))
	}()

	identity, err := policy.ResolveSourceIdentity(path)
	if err != nil {
		return nil, &domain.ConversionError{Product: policy.Product, Path: path, Err: err}
	}

	info, err := s.engine.Inspect(ctx, path, s.cfg.EngineOptions)
	s.metrics.IncEngineInvocations("inspect", err == nil)
	if err != nil {
		return nil, &domain.ConversionError{Product: policy.Product, Path: path, Err: err}
	}

	slices, err := policy.EnumerateSlices(identity, info.Timestamps, filter)
	if err != nil {
		return nil, &domain.ConversionError{Product: policy.Product, Path: path, Err: err}
	}

	result := &FileResult{Path: path}
	if len(slices) == 0 {
		s.logger.Info("no time slices match the requested period", "product", policy.Product, "path", path)
		return result, nil
	}

	docs, err := s.metadataDocuments(ctx, path, slices)
	if err != nil {
		return nil, &domain.ConversionError{Product: policy.Product, Path: path, Err: err}
	}

	for _, slice := range slices {
		outcome, err := s.convertSlice(ctx, policy, info, slice, docs)
		if err != nil {
			return nil, &domain.ConversionError{Product: policy.Product, Path: path, Err: err}
		}
		result.Datasets = append(result.Datasets, outcome)
	}
	return result, nil
}

// metadataDocuments reads the embedded metadata documents of a source file.
// The read is skipped entirely when every slice already has its document on
// disk.
func (s *Converter) metadataDocuments(ctx context.Context, path string, slices []domain.DatasetSlice) ([][]byte, error) {
	needed := false
	for _, slice := range slices {
		has, err := s.staging.HasFile(slice.Prefix, domain.MetadataFilename(slice.Prefix))
		if err != nil {
			return nil, err
		}
		if !has {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}

	docs, err := s.engine.MetadataDocuments(ctx, path)
	s.metrics.IncEngineInvocations("metadata", err == nil)
	return docs, err
}

// convertSlice materializes one dataset: its rewritten metadata document and
// one COG per selected band.
func (s *Converter) convertSlice(ctx context.Context, policy domain.Policy, info *output.SourceInfo, slice domain.DatasetSlice, docs [][]byte) (DatasetOutcome, error) {
	outcome := DatasetOutcome{Prefix: slice.Prefix}

	dir, err := s.staging.EnsureDataset(slice.Prefix)
	if err != nil {
		return outcome, err
	}
	if err := s.writeMetadata(slice, docs); err != nil {
		return outcome, err
	}

	scratch, err := os.MkdirTemp(s.cfg.ScratchDir, "cogstream-")
	if err != nil {
		return outcome, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	for _, sub := range info.Subdatasets {
		band := sub.Variable
		if !policy.SelectsBand(band) {
			s.logger.Debug("band excluded by policy", "prefix", slice.Prefix, "band", band)
			continue
		}

		filename := domain.BandFilename(slice.Prefix, band)
		has, err := s.staging.HasFile(slice.Prefix, filename)
		if err != nil {
			return outcome, err
		}
		if has {
			s.metrics.IncBandsSkipped(policy.Product)
			s.logger.Debug("band already converted", "prefix", slice.Prefix, "band", band)
			continue
		}

		err = s.convertBand(ctx, policy, sub, slice, filepath.Join(scratch, filename), filepath.Join(dir, filename))
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			outcome.BandsFailed++
			s.metrics.IncBandsConverted(policy.Product, false)
			s.logger.Warn("band conversion failed",
				"product", policy.Product,
				"prefix", slice.Prefix,
				"band", band,
				"error", err,
			)
			if s.cfg.HoldOnBandFailure {
				outcome.Held = true
				break
			}
			continue
		}
		s.metrics.IncBandsConverted(policy.Product, true)
	}

	if err := s.staging.RemoveAuxiliary(slice.Prefix); err != nil {
		s.logger.Warn("could not clean auxiliary files", "prefix", slice.Prefix, "error", err)
	}

	s.logger.Debug("dataset converted",
		"prefix", slice.Prefix,
		"failed_bands", outcome.BandsFailed,
		"held", outcome.Held,
	)
	return outcome, nil
}

// writeMetadata persists the dataset's metadata document, rewritten to
// describe the produced per-band files. An existing document is kept.
func (s *Converter) writeMetadata(slice domain.DatasetSlice, docs [][]byte) error {
	filename := domain.MetadataFilename(slice.Prefix)
	has, err := s.staging.HasFile(slice.Prefix, filename)
	if err != nil || has {
		return err
	}

	if slice.Index >= len(docs) {
		return fmt.Errorf("no embedded metadata document for slice %d: %w",
			slice.Index, domain.ErrInvalidInput)
	}
	doc, err := domain.ParseMetadataDocument(docs[slice.Index])
	if err != nil {
		return err
	}
	if err := doc.RewriteForCOG(slice.Prefix); err != nil {
		return err
	}
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	return s.staging.WriteFile(slice.Prefix, filename, data)
}

// convertBand runs the extract, pyramid and finalize steps for one band.
func (s *Converter) convertBand(ctx context.Context, policy domain.Policy, sub output.Subdataset, slice domain.DatasetSlice, scratchPath, destPath string) error {
	err := s.engine.ExtractBand(ctx, output.ExtractRequest{
		Source: sub.Identifier,
		Band:   slice.Index + 1,
		Dest:   scratchPath,
		Config: s.cfg.EngineOptions,
	})
	s.metrics.IncEngineInvocations("extract", err == nil)
	if err != nil {
		return err
	}

	if !policy.SkipsPyramid(sub.Variable) {
		err = s.engine.BuildOverviews(ctx, output.OverviewRequest{
			Path:      scratchPath,
			Method:    policy.ResamplingFor(sub.Variable),
			Levels:    s.cfg.OverviewLevels,
			BlockSize: s.cfg.BlockSize,
			Config:    s.cfg.EngineOptions,
		})
		s.metrics.IncEngineInvocations("overviews", err == nil)
		if err != nil {
			return err
		}
	}

	err = s.engine.FinalizeCOG(ctx, output.FinalizeRequest{
		Source:  scratchPath,
		Dest:    destPath,
		Profile: s.cfg.Profile,
		Config:  s.cfg.EngineOptions,
	})
	s.metrics.IncEngineInvocations("finalize", err == nil)
	if err != nil {
		return err
	}

	// Scratch copies are full-size; drop each one as soon as it lands.
	if err := os.Remove(scratchPath); err != nil {
		s.logger.Warn("could not remove scratch file", "path", scratchPath, "error", err)
	}
	return nil
}
