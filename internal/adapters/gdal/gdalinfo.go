package gdal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rasterd/cogstream/internal/ports/output"
)

// Metadata keys read from gdalinfo output.
const (
	subdatasetsDomain = "SUBDATASETS"
	timeDimensionKey  = "NETCDF_DIM_time_VALUES"
)

// fileInfo is the subset of gdalinfo -json output the engine reads.
type fileInfo struct {
	DriverShortName string                       `json:"driverShortName"`
	Metadata        map[string]map[string]string `json:"metadata"`
}

// parseFileInfo decodes gdalinfo -json output.
func parseFileInfo(raw []byte) (*fileInfo, error) {
	var info fileInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode gdalinfo output: %w", err)
	}
	return &info, nil
}

// subdatasets returns the SUBDATASETS metadata domain in index order.
func (f *fileInfo) subdatasets() []output.Subdataset {
	entries := f.Metadata[subdatasetsDomain]
	var subs []output.Subdataset
	for i := 1; ; i++ {
		name, ok := entries[fmt.Sprintf("SUBDATASET_%d_NAME", i)]
		if !ok {
			break
		}
		subs = append(subs, output.Subdataset{
			Identifier: name,
			Variable:   subdatasetVariable(name),
		})
	}
	return subs
}

// subdatasetVariable returns the trailing variable name of a subdataset
// identifier such as NETCDF:"/data/file.nc":water.
func subdatasetVariable(identifier string) string {
	if i := strings.LastIndex(identifier, ":"); i >= 0 {
		return identifier[i+1:]
	}
	return identifier
}

// timeValues parses the embedded time coordinate from the default metadata
// domain. Returns nil when the file carries no time dimension.
func (f *fileInfo) timeValues() ([]time.Time, error) {
	raw, ok := f.Metadata[""][timeDimensionKey]
	if !ok {
		return nil, nil
	}
	return parseEpochList(raw)
}

// parseEpochList parses a brace-wrapped comma-separated list of epoch
// seconds, e.g. "{1525602018,1528849818}". Fractional seconds are kept.
func parseEpochList(raw string) ([]time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	if strings.TrimSpace(trimmed) == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, ",")
	values := make([]time.Time, 0, len(parts))
	for _, part := range parts {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse time value %q: %w", part, err)
		}
		sec := int64(seconds)
		nsec := int64((seconds - float64(sec)) * float64(time.Second))
		values = append(values, time.Unix(sec, nsec).UTC())
	}
	return values, nil
}
