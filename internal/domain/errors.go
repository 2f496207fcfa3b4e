package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrExternalTool = errors.New("external tool failure")
	ErrFilesystem   = errors.New("filesystem failure")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrTemplateMismatch   = fmt.Errorf("template mismatch: %w", ErrInvalidInput)
	ErrInvalidTimeMode    = fmt.Errorf("time mode: %w", ErrInvalidInput)
	ErrProductNotFound    = fmt.Errorf("product: %w", ErrNotFound)
	ErrMarkerNotFound     = fmt.Errorf("upload marker: %w", ErrNotFound)
	ErrCatalogUnavailable = fmt.Errorf("catalog: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ConversionError represents a failure while converting one input file.
type ConversionError struct {
	Product string // Product name
	Path    string // Source file path
	Band    string // Band name, empty for file-level failures
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Band != "" {
		return fmt.Sprintf("conversion error for %s band %s of %s: %v",
			e.Product, e.Band, e.Path, e.Err)
	}
	return fmt.Sprintf("conversion error for %s file %s: %v", e.Product, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// TransitionError represents a failed dataset state transition.
type TransitionError struct {
	Prefix string // Dataset prefix
	From   State  // Source state
	To     State  // Target state
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition error for dataset %s (%s -> %s): %v",
		e.Prefix, e.From, e.To, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransitionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrFilesystem
}

// SyncError represents a failed remote synchronization of one dataset.
type SyncError struct {
	Prefix      string // Dataset prefix
	Destination string // Remote destination path
	Err         error  // Underlying error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync error for dataset %s to %s: %v",
		e.Prefix, e.Destination, e.Err)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
