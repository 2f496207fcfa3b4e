// Package domain contains the core entities of the conversion pipeline:
// product policies, tile identities, dataset lifecycle states and the
// metadata document model.
package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TileIdentity identifies one spatial/temporal unit of data. X and Y carry
// the optionally-signed tile indices verbatim as they appear in the source
// file name, Time the compact datetime token (YYYYMMDDHHMMSS) when present.
type TileIdentity struct {
	X    string // Tile index easting, e.g. "9"
	Y    string // Tile index northing, e.g. "-39"
	Time string // Datetime token, empty for untimed products
}

// HasTime reports whether the identity carries a time component.
func (id TileIdentity) HasTime() bool {
	return id.Time != ""
}

// String returns a string representation of the identity.
func (id TileIdentity) String() string {
	if id.Time != "" {
		return fmt.Sprintf("(%s, %s, %s)", id.X, id.Y, id.Time)
	}
	return fmt.Sprintf("(%s, %s)", id.X, id.Y)
}

// DateParts holds calendar components sliced from a compact datetime token.
// Components whose expected width the token does not cover are empty.
type DateParts struct {
	Year  string // First 4 digits
	Month string // Next 2 digits
	Day   string // Next 2 digits
	Time  string // Remainder (time of day), may be empty
}

// Complete reports whether year, month and day are all present.
func (p DateParts) Complete() bool {
	return p.Year != "" && p.Month != "" && p.Day != ""
}

// SplitDateToken decomposes a compact datetime token (YYYYMMDDHHMMSS...)
// by fixed-width slicing. Missing components are omitted, never an error;
// callers must tolerate partial time information.
func SplitDateToken(token string) DateParts {
	var parts DateParts
	if len(token) >= 4 {
		parts.Year = token[0:4]
	}
	if len(token) >= 6 {
		parts.Month = token[4:6]
	}
	if len(token) >= 8 {
		parts.Day = token[6:8]
	}
	if len(token) > 8 {
		parts.Time = token[8:]
	}
	return parts
}

// ExtractTokenIdentity derives a tile identity from an underscore-delimited
// file name when no templates are configured. The numeric tokens of the base
// name (extension stripped) are scanned and the last three become x, y and
// the datetime token; with only two numeric tokens the identity is untimed.
// Missing tokens are silently omitted.
func ExtractTokenIdentity(path string) TileIdentity {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var numeric []string
	for _, token := range strings.Split(base, "_") {
		if isNumericToken(token) {
			numeric = append(numeric, token)
		}
	}

	var id TileIdentity
	switch n := len(numeric); {
	case n >= 3:
		id.X = numeric[n-3]
		id.Y = numeric[n-2]
		id.Time = numeric[n-1]
	case n == 2:
		id.X = numeric[0]
		id.Y = numeric[1]
	case n == 1:
		id.X = numeric[0]
	}
	return id
}

// isNumericToken reports whether s is an optionally-signed run of digits.
func isNumericToken(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
