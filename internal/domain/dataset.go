package domain

import "fmt"

// State is the lifecycle state of a dataset directory. States map
// one-to-one onto staging directory names under the output root.
type State string

// Dataset lifecycle states.
const (
	StateWorking  State = "WORKING"
	StateToUpload State = "TO_UPLOAD"
	StateComplete State = "COMPLETE"
	StateFailed   State = "FAILED"
)

// States lists all lifecycle states in processing order.
var States = []State{StateWorking, StateToUpload, StateComplete, StateFailed}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateWorking, StateToUpload, StateComplete, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends a dataset's lifecycle.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition reports whether moving a dataset from s to target is legal.
// Conversion promotes WORKING to TO_UPLOAD; the upload watcher moves
// TO_UPLOAD to COMPLETE or FAILED (or deletes the dataset). All transitions
// are terminal for their source directory.
func (s State) CanTransition(target State) bool {
	switch s {
	case StateWorking:
		return target == StateToUpload
	case StateToUpload:
		return target == StateComplete || target == StateFailed
	}
	return false
}

// Transition validates the move from s to target.
func (s State) Transition(target State) error {
	if !s.CanTransition(target) {
		return &TransitionError{
			From: s,
			To:   target,
			Err:  fmt.Errorf("illegal transition: %w", ErrInvalidInput),
		}
	}
	return nil
}

// MarkerFilename is the upload destination marker written into each dataset
// directory at promotion time. It contains the fully-qualified remote
// destination as plain text and is excluded from the upload itself.
const MarkerFilename = "upload-destination.txt"

// Dataset describes one converted dataset directory in the staging area.
type Dataset struct {
	Prefix string // Directory name, shared stem of all contained files
	Path   string // Absolute directory path
	State  State  // Current lifecycle state
}

// BandFilename returns the output file name for one band of a dataset.
func BandFilename(prefix, band string) string {
	return prefix + "_" + band + ".tif"
}

// MetadataFilename returns the metadata document name for a dataset.
func MetadataFilename(prefix string) string {
	return prefix + ".yaml"
}
