package output

import "github.com/rasterd/cogstream/internal/domain"

// StagingArea defines the secondary port to the on-disk dataset layout that
// carries datasets through their lifecycle states. Listing and moves operate
// on whole dataset directories; file operations address the WORKING copy.
type StagingArea interface {
	// Ensure creates the lifecycle state directories.
	Ensure() error

	// EnsureDataset creates (or reuses) the dataset directory under WORKING
	// and returns its path.
	EnsureDataset(prefix string) (string, error)

	// DatasetDir returns the directory of one dataset in the given state.
	DatasetDir(state domain.State, prefix string) string

	// HasFile reports whether a file already exists in a working dataset.
	HasFile(prefix, filename string) (bool, error)

	// WriteFile writes a file into a working dataset.
	WriteFile(prefix, filename string, data []byte) error

	// RemoveAuxiliary deletes engine side-channel files from a working
	// dataset.
	RemoveAuxiliary(prefix string) error

	// List returns the dataset prefixes currently in the given state, sorted.
	List(state domain.State) ([]string, error)

	// Counts returns the number of datasets in every state.
	Counts() (map[domain.State]int, error)

	// WriteMarker writes the upload destination marker into a working
	// dataset.
	WriteMarker(prefix, destination string) error

	// ReadMarker returns the upload destination of a dataset awaiting
	// upload. Fails with domain.ErrMarkerNotFound when no marker was written.
	ReadMarker(prefix string) (string, error)

	// Promote moves a finished dataset from WORKING to TO_UPLOAD.
	Promote(prefix string) error

	// Finish moves an uploaded dataset from TO_UPLOAD to COMPLETE, or to
	// FAILED when the upload did not succeed.
	Finish(prefix string, success bool) error

	// Remove deletes a dataset from the given state directory.
	Remove(state domain.State, prefix string) error
}
