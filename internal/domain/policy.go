package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimeMode describes how a product's time component is obtained.
type TimeMode string

// Supported time modes.
const (
	// TimeModeFilename takes the time token from the source file name.
	TimeModeFilename TimeMode = "filename"
	// TimeModeDataset enumerates time slices embedded in the source file.
	TimeModeDataset TimeMode = "dataset"
	// TimeModeNotime is for products without a time dimension.
	TimeModeNotime TimeMode = "notime"
)

// ParseTimeMode parses a time mode, accepting the legacy aliases "timed"
// (dataset) and "flat" (notime).
func ParseTimeMode(s string) (TimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filename":
		return TimeModeFilename, nil
	case "dataset", "timed":
		return TimeModeDataset, nil
	case "notime", "flat":
		return TimeModeNotime, nil
	default:
		return "", fmt.Errorf("unknown time mode %q: %w", s, ErrInvalidTimeMode)
	}
}

// Timed reports whether the mode carries a time component.
func (m TimeMode) Timed() bool {
	return m == TimeModeFilename || m == TimeModeDataset
}

// Default remote suffix layouts.
const (
	defaultSuffixTemplate      = "x_{x}/y_{y}"
	defaultTimedSuffixTemplate = "x_{x}/y_{y}/{year}/{month}/{day}"
)

// DefaultResampling is used when a product configures no resampling method.
const DefaultResampling = "average"

// Policy is the immutable per-product conversion configuration.
type Policy struct {
	Product              string            // Product name
	TimeMode             TimeMode          // Time semantics
	SourceTemplate       string            // Template matching source file names
	DestTemplate         string            // Template producing dataset prefixes
	Bucket               string            // Remote bucket, e.g. "s3://dea-public-data"
	AWSDir               string            // Remote base directory within the bucket
	AWSDirSuffixTemplate string            // Remote suffix layout below AWSDir
	DefaultResampling    string            // Overview resampling method
	BandResampling       map[string]string // Per-band resampling overrides
	BandAllowList        []string          // Bands to convert; empty allows all
	BandDenyList         []string          // Bands never converted; checked first
	NoPyramidBands       []string          // Bands that skip overview building
}

// Normalize fills unset optional fields with their defaults.
func (p *Policy) Normalize() {
	if p.DefaultResampling == "" {
		p.DefaultResampling = DefaultResampling
	}
	if p.AWSDirSuffixTemplate == "" {
		if p.TimeMode.Timed() {
			p.AWSDirSuffixTemplate = defaultTimedSuffixTemplate
		} else {
			p.AWSDirSuffixTemplate = defaultSuffixTemplate
		}
	}
}

// Validate checks the policy for completeness.
func (p Policy) Validate() error {
	switch p.TimeMode {
	case TimeModeFilename, TimeModeDataset, TimeModeNotime:
	default:
		return &ValidationError{
			Field:      "time_mode",
			Value:      string(p.TimeMode),
			Constraint: "filename|dataset|notime",
			Message:    "unknown time mode",
		}
	}
	if p.DestTemplate == "" {
		return &ValidationError{
			Field:      "dest_template",
			Value:      "",
			Constraint: "non-empty",
			Message:    "destination template is required",
		}
	}
	if _, err := CompileTemplate(p.DestTemplate, p.TimeMode.Timed()); err != nil {
		return &ValidationError{
			Field:      "dest_template",
			Value:      p.DestTemplate,
			Constraint: "compilable",
			Message:    err.Error(),
		}
	}
	if p.SourceTemplate != "" {
		if _, err := CompileTemplate(p.SourceTemplate, p.TimeMode == TimeModeFilename); err != nil {
			return &ValidationError{
				Field:      "source_template",
				Value:      p.SourceTemplate,
				Constraint: "compilable",
				Message:    err.Error(),
			}
		}
	}
	if p.Bucket == "" {
		return &ValidationError{
			Field:      "bucket",
			Value:      "",
			Constraint: "non-empty",
			Message:    "bucket is required",
		}
	}
	if p.AWSDir == "" {
		return &ValidationError{
			Field:      "aws_dir",
			Value:      "",
			Constraint: "non-empty",
			Message:    "remote base directory is required",
		}
	}
	return nil
}

// ResolveSourceIdentity derives the tile identity from a source file name.
// The source template is used when configured, falling back to the
// destination template, and finally to token extraction when the product
// declares no templates at all. Only the filename time mode captures the
// time component from the name.
func (p Policy) ResolveSourceIdentity(path string) (TileIdentity, error) {
	raw := p.SourceTemplate
	if raw == "" {
		raw = p.DestTemplate
	}
	if raw == "" {
		return ExtractTokenIdentity(path), nil
	}
	tpl, err := CompileTemplate(raw, p.TimeMode == TimeModeFilename)
	if err != nil {
		return TileIdentity{}, err
	}
	return tpl.ResolveIdentity(path)
}

// PrefixFor renders the dataset prefix for an identity from the destination
// template.
func (p Policy) PrefixFor(id TileIdentity) string {
	return RenderTemplate(p.DestTemplate, map[string]string{
		"x": id.X, "y": id.Y, "time": id.Time,
	})
}

// TimeFilter restricts dataset-mode slice enumeration to a year or a
// year/month. The zero value matches everything.
type TimeFilter struct {
	Year  int
	Month int
}

// Matches reports whether the filter admits the timestamp.
func (f TimeFilter) Matches(t time.Time) bool {
	if f.Year == 0 {
		return true
	}
	u := t.UTC()
	if u.Year() != f.Year {
		return false
	}
	return f.Month == 0 || int(u.Month()) == f.Month
}

// DatasetSlice pairs a dataset prefix with the zero-based time-slice index
// it corresponds to within the source file. The index selects both the
// raster band to extract and the embedded metadata document.
type DatasetSlice struct {
	Prefix string
	Index  int
}

// TimeTokenFormat is the canonical compact timestamp layout for prefixes.
const TimeTokenFormat = "20060102150405"

// EnumerateSlices returns the dataset slices one source file expands to.
// Untimed and filename-mode products yield exactly one slice; dataset-mode
// products yield one per embedded timestamp, optionally filtered to a
// requested year/month.
func (p Policy) EnumerateSlices(id TileIdentity, timestamps []time.Time, filter TimeFilter) ([]DatasetSlice, error) {
	switch p.TimeMode {
	case TimeModeNotime:
		return []DatasetSlice{{Prefix: p.PrefixFor(TileIdentity{X: id.X, Y: id.Y})}}, nil
	case TimeModeFilename:
		return []DatasetSlice{{Prefix: p.PrefixFor(id)}}, nil
	case TimeModeDataset:
		if len(timestamps) == 0 {
			return nil, fmt.Errorf("product %s: source has no time slices: %w",
				p.Product, ErrInvalidTimeMode)
		}
		slices := make([]DatasetSlice, 0, len(timestamps))
		for i, ts := range timestamps {
			if !filter.Matches(ts) {
				continue
			}
			slice := TileIdentity{X: id.X, Y: id.Y, Time: ts.UTC().Format(TimeTokenFormat)}
			slices = append(slices, DatasetSlice{Prefix: p.PrefixFor(slice), Index: i})
		}
		return slices, nil
	default:
		return nil, fmt.Errorf("product %s: %q: %w", p.Product, p.TimeMode, ErrInvalidTimeMode)
	}
}

// ResolveRemoteSuffix formats the remote suffix layout for an identity.
// Layouts mentioning date placeholders require an identity with at least a
// YYYYMMDD time token; fails with ErrInvalidTimeMode otherwise.
func (p Policy) ResolveRemoteSuffix(id TileIdentity) (string, error) {
	vars := map[string]string{"x": id.X, "y": id.Y}
	needsDate := TemplateMentions(p.AWSDirSuffixTemplate, "year") ||
		TemplateMentions(p.AWSDirSuffixTemplate, "month") ||
		TemplateMentions(p.AWSDirSuffixTemplate, "day")
	if needsDate {
		parts := SplitDateToken(id.Time)
		if !parts.Complete() {
			return "", fmt.Errorf("product %s: identity %s lacks a date for suffix %q: %w",
				p.Product, id, p.AWSDirSuffixTemplate, ErrInvalidTimeMode)
		}
		vars["year"] = parts.Year
		vars["month"] = parts.Month
		vars["day"] = parts.Day
	}
	return RenderTemplate(p.AWSDirSuffixTemplate, vars), nil
}

// ResolveDestination returns the fully-qualified remote destination for an
// identity: bucket, remote base directory and resolved suffix joined with
// slashes.
func (p Policy) ResolveDestination(id TileIdentity) (string, error) {
	suffix, err := p.ResolveRemoteSuffix(id)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(p.Bucket, "/") + "/" + strings.Trim(p.AWSDir, "/") + "/" + suffix, nil
}

// DestinationForPrefix re-derives the tile identity embedded in a dataset
// prefix via the destination template and resolves the remote destination
// for it. Timed products re-capture the time token from the prefix.
// Prefixes the template cannot parse (staged under an older template, say)
// fall back to positional token extraction.
func (p Policy) DestinationForPrefix(prefix string) (string, error) {
	tpl, err := CompileTemplate(p.DestTemplate, p.TimeMode.Timed())
	if err != nil {
		return "", err
	}
	id, err := tpl.ResolveIdentity(prefix)
	if err != nil {
		id = ExtractTokenIdentity(prefix)
		if id.X == "" || id.Y == "" {
			return "", err
		}
	}
	return p.ResolveDestination(id)
}

// SelectsBand reports whether a band passes the product's band filters.
// The deny list always wins; with a non-empty allow list only listed bands
// pass.
func (p Policy) SelectsBand(name string) bool {
	for _, denied := range p.BandDenyList {
		if name == denied {
			return false
		}
	}
	if len(p.BandAllowList) == 0 {
		return true
	}
	for _, allowed := range p.BandAllowList {
		if name == allowed {
			return true
		}
	}
	return false
}

// ResamplingFor returns the overview resampling method for a band.
func (p Policy) ResamplingFor(band string) string {
	if method, ok := p.BandResampling[band]; ok {
		return method
	}
	if p.DefaultResampling != "" {
		return p.DefaultResampling
	}
	return DefaultResampling
}

// SkipsPyramid reports whether overview building is disabled for a band.
func (p Policy) SkipsPyramid(band string) bool {
	for _, b := range p.NoPyramidBands {
		if band == b {
			return true
		}
	}
	return false
}

// BucketName returns the bare bucket name with any URL scheme stripped,
// e.g. "s3://dea-public-data/" yields "dea-public-data".
func (p Policy) BucketName() string {
	name := p.Bucket
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	return strings.Trim(name, "/")
}

// SourceStem returns the base name of a source path with the extension
// stripped.
func SourceStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
