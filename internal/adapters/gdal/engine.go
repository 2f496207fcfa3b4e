// Package gdal adapts the GDAL command line tools to the raster engine port.
package gdal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/rasterd/cogstream/internal/command"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// Default tool binaries and the conventional embedded metadata variable.
const (
	DefaultTranslateBinary = "gdal_translate"
	DefaultAddoBinary      = "gdaladdo"
	DefaultInfoBinary      = "gdalinfo"
	DefaultNcdumpBinary    = "ncdump"
	DefaultMetadataVar     = "dataset"
)

// overviewBlockSizeOption names the engine flag controlling overview tiles.
const overviewBlockSizeOption = "GDAL_TIFF_OVR_BLOCKSIZE"

// Config holds the engine adapter configuration.
type Config struct {
	TranslateBinary  string // gdal_translate binary
	AddoBinary       string // gdaladdo binary
	InfoBinary       string // gdalinfo binary
	NcdumpBinary     string // ncdump binary
	MetadataVariable string // Embedded metadata variable name
}

// Engine drives the GDAL tools through the command runner. It implements
// output.RasterEngine.
type Engine struct {
	cfg    Config
	runner command.Runner
	logger *slog.Logger
}

// New creates a GDAL engine adapter. Unset config fields get defaults.
func New(cfg Config, runner command.Runner, logger *slog.Logger) *Engine {
	if cfg.TranslateBinary == "" {
		cfg.TranslateBinary = DefaultTranslateBinary
	}
	if cfg.AddoBinary == "" {
		cfg.AddoBinary = DefaultAddoBinary
	}
	if cfg.InfoBinary == "" {
		cfg.InfoBinary = DefaultInfoBinary
	}
	if cfg.NcdumpBinary == "" {
		cfg.NcdumpBinary = DefaultNcdumpBinary
	}
	if cfg.MetadataVariable == "" {
		cfg.MetadataVariable = DefaultMetadataVar
	}
	return &Engine{
		cfg:    cfg,
		runner: runner,
		logger: logger.With("component", "gdal"),
	}
}

// configArgs renders runtime configuration as --config argument pairs in
// deterministic key order.
func configArgs(cfg output.RuntimeConfig) []string {
	if len(cfg) == 0 {
		return nil
	}
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, 3*len(keys))
	for _, k := range keys {
		args = append(args, "--config", k, cfg[k])
	}
	return args
}

// Inspect implements output.RasterEngine. The returned subdatasets exclude
// the embedded metadata variable; the time coordinate is read from the file
// itself, falling back to the first subdataset.
func (e *Engine) Inspect(ctx context.Context, path string, cfg output.RuntimeConfig) (*output.SourceInfo, error) {
	root, err := e.describe(ctx, path, cfg)
	if err != nil {
		return nil, err
	}

	info := &output.SourceInfo{Path: path}
	for _, sub := range root.subdatasets() {
		if sub.Variable == e.cfg.MetadataVariable {
			continue
		}
		info.Subdatasets = append(info.Subdatasets, sub)
	}

	timestamps, err := root.timeValues()
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	if len(timestamps) == 0 && len(info.Subdatasets) > 0 {
		sub, err := e.describe(ctx, info.Subdatasets[0].Identifier, cfg)
		if err != nil {
			return nil, err
		}
		if timestamps, err = sub.timeValues(); err != nil {
			return nil, fmt.Errorf("inspect %s: %w", path, err)
		}
	}
	info.Timestamps = timestamps

	e.logger.Debug("inspected source",
		"path", path,
		"subdatasets", len(info.Subdatasets),
		"time_slices", len(info.Timestamps))
	return info, nil
}

// describe runs gdalinfo -json over a path or subdataset identifier.
func (e *Engine) describe(ctx context.Context, target string, cfg output.RuntimeConfig) (*fileInfo, error) {
	args := append(configArgs(cfg), "-json", target)
	out, err := e.runner.Run(ctx, command.Invocation{Path: e.cfg.InfoBinary, Args: args})
	if err != nil {
		return nil, err
	}
	return parseFileInfo(out)
}

// MetadataDocuments implements output.RasterEngine. Documents are read from
// the embedded metadata variable via ncdump, one per time slice.
func (e *Engine) MetadataDocuments(ctx context.Context, path string) ([][]byte, error) {
	out, err := e.runner.Run(ctx, command.Invocation{
		Path: e.cfg.NcdumpBinary,
		Args: []string{"-v", e.cfg.MetadataVariable, path},
	})
	if err != nil {
		return nil, err
	}
	docs, err := parseCDLStrings(out, e.cfg.MetadataVariable)
	if err != nil {
		return nil, fmt.Errorf("read metadata from %s: %w", path, err)
	}
	return docs, nil
}

// ExtractBand implements output.RasterEngine.
func (e *Engine) ExtractBand(ctx context.Context, req output.ExtractRequest) error {
	args := append(configArgs(req.Config),
		"-of", "GTIFF",
		"-b", strconv.Itoa(req.Band),
		req.Source,
		req.Dest,
	)
	_, err := e.runner.Run(ctx, command.Invocation{Path: e.cfg.TranslateBinary, Args: args})
	return err
}

// BuildOverviews implements output.RasterEngine.
func (e *Engine) BuildOverviews(ctx context.Context, req output.OverviewRequest) error {
	cfg := req.Config.Clone()
	if req.BlockSize > 0 {
		if cfg == nil {
			cfg = make(output.RuntimeConfig, 1)
		}
		cfg[overviewBlockSizeOption] = strconv.Itoa(req.BlockSize)
	}
	args := append([]string{"-r", req.Method}, configArgs(cfg)...)
	args = append(args, req.Path)
	for _, level := range req.Levels {
		args = append(args, strconv.Itoa(level))
	}
	_, err := e.runner.Run(ctx, command.Invocation{Path: e.cfg.AddoBinary, Args: args})
	return err
}

// FinalizeCOG implements output.RasterEngine.
func (e *Engine) FinalizeCOG(ctx context.Context, req output.FinalizeRequest) error {
	cfg := req.Config.Clone()
	if req.Profile.BlockSize > 0 {
		if cfg == nil {
			cfg = make(output.RuntimeConfig, 1)
		}
		cfg[overviewBlockSizeOption] = strconv.Itoa(req.Profile.BlockSize)
	}
	args := append(configArgs(cfg),
		"-co", "TILED=YES",
		"-co", "COPY_SRC_OVERVIEWS=YES",
		"-co", "COMPRESS="+req.Profile.Compress,
		"-co", "ZLEVEL="+strconv.Itoa(req.Profile.ZLevel),
		"-co", "BLOCKXSIZE="+strconv.Itoa(req.Profile.BlockSize),
		"-co", "BLOCKYSIZE="+strconv.Itoa(req.Profile.BlockSize),
		"-co", "PREDICTOR="+strconv.Itoa(req.Profile.Predictor),
		"-co", "PROFILE=GeoTIFF",
		req.Source,
		req.Dest,
	)
	_, err := e.runner.Run(ctx, command.Invocation{Path: e.cfg.TranslateBinary, Args: args})
	return err
}
