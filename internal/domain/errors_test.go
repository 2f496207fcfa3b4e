package domain

import (
	"errors"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		base error
	}{
		{name: "template mismatch", err: ErrTemplateMismatch, base: ErrInvalidInput},
		{name: "invalid time mode", err: ErrInvalidTimeMode, base: ErrInvalidInput},
		{name: "product not found", err: ErrProductNotFound, base: ErrNotFound},
		{name: "marker not found", err: ErrMarkerNotFound, base: ErrNotFound},
		{name: "catalog unavailable", err: ErrCatalogUnavailable, base: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.base) {
				t.Errorf("%v should unwrap to %v", tt.err, tt.base)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:      "time_mode",
		Value:      "hourly",
		Constraint: "filename|dataset|notime",
		Message:    "unknown time mode",
	}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}
}

func TestConversionError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConversionError
	}{
		{
			name: "with band",
			err: &ConversionError{
				Product: "wofs_albers",
				Path:    "LS_WATER_3577_9_-39_20180506102018.nc",
				Band:    "water",
				Err:     ErrExternalTool,
			},
		},
		{
			name: "file level",
			err: &ConversionError{
				Product: "wofs_albers",
				Path:    "LS_WATER_3577_9_-39_20180506102018.nc",
				Err:     ErrTemplateMismatch,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Error("Error() should not return empty string")
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Error("Unwrap should return the underlying error")
			}
		})
	}
}

func TestTransitionError(t *testing.T) {
	withCause := &TransitionError{
		Prefix: "tile_9_-39",
		From:   StateToUpload,
		To:     StateComplete,
		Err:    errors.New("rename failed"),
	}
	if withCause.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(withCause, withCause.Err) {
		t.Error("Unwrap should return the underlying error")
	}

	// Without a cause the error still lands in the filesystem class.
	bare := &TransitionError{Prefix: "tile_9_-39", From: StateWorking, To: StateComplete}
	if !errors.Is(bare, ErrFilesystem) {
		t.Error("bare TransitionError should unwrap to ErrFilesystem")
	}
}

func TestSyncError(t *testing.T) {
	err := &SyncError{
		Prefix:      "tile_9_-39",
		Destination: "s3://bucket/dir/x_9/y_-39",
		Err:         ErrExternalTool,
	}
	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrExternalTool) {
		t.Error("SyncError should unwrap to its cause")
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "output.dir", Message: "directory is required"}
	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ConfigError should unwrap to ErrInvalidInput")
	}
}
