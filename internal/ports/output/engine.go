// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"time"
)

// RuntimeConfig holds engine behavior flags for a single invocation. The
// flags travel with each request instead of living in process-global
// environment state.
type RuntimeConfig map[string]string

// Clone returns a copy of the runtime configuration.
func (c RuntimeConfig) Clone() RuntimeConfig {
	if c == nil {
		return nil
	}
	out := make(RuntimeConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Subdataset identifies one named raster layer embedded in a source file.
type Subdataset struct {
	Identifier string // Engine identifier, e.g. "NETCDF:/data/file.nc:water"
	Variable   string // Trailing variable name, e.g. "water"
}

// SourceInfo describes the layers and time coordinate of a source file.
type SourceInfo struct {
	Path        string       // Source file path
	Subdatasets []Subdataset // Embedded layers in engine order
	Timestamps  []time.Time  // Embedded time coordinate, empty when untimed
}

// COGProfile holds the encoding parameters of the final output format.
type COGProfile struct {
	Compress  string // Compression algorithm, e.g. "DEFLATE"
	ZLevel    int    // Compression level
	Predictor int    // Compression predictor
	BlockSize int    // Tile block size in pixels
}

// ExtractRequest extracts a single band of a subdataset to a scratch file.
type ExtractRequest struct {
	Source string        // Subdataset identifier
	Band   int           // One-based band number (time-slice position)
	Dest   string        // Scratch output path
	Config RuntimeConfig // Per-invocation engine flags
}

// OverviewRequest builds an internal image pyramid on a scratch file.
type OverviewRequest struct {
	Path      string        // Scratch file to build overviews on
	Method    string        // Resampling method, e.g. "average"
	Levels    []int         // Overview levels, e.g. 2,4,8,16,32
	BlockSize int           // Overview tile block size in pixels
	Config    RuntimeConfig // Per-invocation engine flags
}

// FinalizeRequest re-encodes a scratch file into the final tiled output,
// copying any overviews that were built on it.
type FinalizeRequest struct {
	Source  string        // Scratch file
	Dest    string        // Final output path
	Profile COGProfile    // Output encoding parameters
	Config  RuntimeConfig // Per-invocation engine flags
}

// RasterEngine defines the secondary port to the external raster engine.
// Every invocation either succeeds or returns a command failure carrying
// the failed command, its exit code and captured output.
type RasterEngine interface {
	// Inspect reads the subdataset list and embedded time coordinate of a
	// source file.
	Inspect(ctx context.Context, path string, cfg RuntimeConfig) (*SourceInfo, error)

	// MetadataDocuments reads the embedded per-slice metadata records of a
	// source file, one raw document per time slice.
	MetadataDocuments(ctx context.Context, path string) ([][]byte, error)

	// ExtractBand extracts one band of a subdataset to a scratch file.
	ExtractBand(ctx context.Context, req ExtractRequest) error

	// BuildOverviews builds pyramid levels on a scratch file.
	BuildOverviews(ctx context.Context, req OverviewRequest) error

	// FinalizeCOG re-encodes a scratch file into the final output format.
	FinalizeCOG(ctx context.Context, req FinalizeRequest) error
}
