// Package staging manages converted datasets on disk. Each lifecycle state
// is a directory under the output root; a dataset moves between states by
// an atomic directory rename.
package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rasterd/cogstream/internal/domain"
)

// Layout is the staging area under one output root.
type Layout struct {
	root   string
	logger *slog.Logger
}

// NewLayout creates a staging layout rooted at dir.
func NewLayout(dir string, logger *slog.Logger) *Layout {
	return &Layout{
		root:   dir,
		logger: logger.With("component", "staging"),
	}
}

// Root returns the output root directory.
func (l *Layout) Root() string {
	return l.root
}

// Ensure creates the state directories. Existing directories are kept, so
// a restart resumes over whatever a previous run left behind.
func (l *Layout) Ensure() error {
	for _, state := range domain.States {
		if err := os.MkdirAll(l.StateDir(state), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", state, err)
		}
	}
	return nil
}

// StateDir returns the directory holding datasets in the given state.
func (l *Layout) StateDir(state domain.State) string {
	return filepath.Join(l.root, state.String())
}

// DatasetDir returns the directory of one dataset in the given state.
func (l *Layout) DatasetDir(state domain.State, prefix string) string {
	return filepath.Join(l.StateDir(state), prefix)
}

// List returns the dataset prefixes currently in the given state, sorted.
func (l *Layout) List(state domain.State) ([]string, error) {
	entries, err := os.ReadDir(l.StateDir(state))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s datasets: %w", state, err)
	}

	prefixes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			prefixes = append(prefixes, entry.Name())
		}
	}
	return prefixes, nil
}

// Counts returns the number of datasets in every state.
func (l *Layout) Counts() (map[domain.State]int, error) {
	counts := make(map[domain.State]int, len(domain.States))
	for _, state := range domain.States {
		prefixes, err := l.List(state)
		if err != nil {
			return nil, err
		}
		counts[state] = len(prefixes)
	}
	return counts, nil
}

// EnsureDataset creates the dataset directory under WORKING and returns its
// path. An existing directory is reused, so an interrupted conversion picks
// up where it stopped.
func (l *Layout) EnsureDataset(prefix string) (string, error) {
	dir := l.DatasetDir(domain.StateWorking, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset %s: %w", prefix, err)
	}
	return dir, nil
}

// HasFile reports whether a file already exists in a working dataset.
func (l *Layout) HasFile(prefix, filename string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.DatasetDir(domain.StateWorking, prefix), filename))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WriteFile writes a file into a working dataset.
func (l *Layout) WriteFile(prefix, filename string, data []byte) error {
	path := filepath.Join(l.DatasetDir(domain.StateWorking, prefix), filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s for %s: %w", filename, prefix, err)
	}
	return nil
}

// RemoveAuxiliary deletes engine side-channel files (*.xml) from a working
// dataset, keeping statistics dumps out of the uploaded output.
func (l *Layout) RemoveAuxiliary(prefix string) error {
	pattern := filepath.Join(l.DatasetDir(domain.StateWorking, prefix), "*.xml")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob auxiliary files for %s: %w", prefix, err)
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("remove auxiliary file %s: %w", match, err)
		}
	}
	return nil
}

// WriteMarker writes the upload destination marker into a working dataset.
func (l *Layout) WriteMarker(prefix, destination string) error {
	marker := filepath.Join(l.DatasetDir(domain.StateWorking, prefix), domain.MarkerFilename)
	if err := os.WriteFile(marker, []byte(destination+"\n"), 0o644); err != nil {
		return fmt.Errorf("write marker for %s: %w", prefix, err)
	}
	return nil
}

// ReadMarker returns the upload destination of a dataset awaiting upload.
// Only the first line counts; trailing content is ignored.
func (l *Layout) ReadMarker(prefix string) (string, error) {
	marker := filepath.Join(l.DatasetDir(domain.StateToUpload, prefix), domain.MarkerFilename)
	raw, err := os.ReadFile(marker) //#nosec G304 -- path assembled from the staging root
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("dataset %s: %w", prefix, domain.ErrMarkerNotFound)
		}
		return "", fmt.Errorf("read marker for %s: %w", prefix, err)
	}

	destination, _, _ := strings.Cut(string(raw), "\n")
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("dataset %s: empty marker: %w", prefix, domain.ErrMarkerNotFound)
	}
	return destination, nil
}

// Promote moves a finished dataset from WORKING to TO_UPLOAD.
func (l *Layout) Promote(prefix string) error {
	return l.move(prefix, domain.StateWorking, domain.StateToUpload)
}

// Finish moves an uploaded dataset from TO_UPLOAD to COMPLETE, or to FAILED
// when the upload did not succeed.
func (l *Layout) Finish(prefix string, success bool) error {
	target := domain.StateComplete
	if !success {
		target = domain.StateFailed
	}
	return l.move(prefix, domain.StateToUpload, target)
}

// Remove deletes a dataset from the given state directory.
func (l *Layout) Remove(state domain.State, prefix string) error {
	if err := os.RemoveAll(l.DatasetDir(state, prefix)); err != nil {
		return fmt.Errorf("remove %s dataset %s: %w", state, prefix, err)
	}
	return nil
}

// move renames a dataset directory between state directories, replacing
// any stale dataset of the same prefix left by an earlier run.
func (l *Layout) move(prefix string, from, to domain.State) error {
	if err := from.Transition(to); err != nil {
		var terr *domain.TransitionError
		if errors.As(err, &terr) {
			terr.Prefix = prefix
		}
		return err
	}

	src := l.DatasetDir(from, prefix)
	dst := l.DatasetDir(to, prefix)

	if err := os.RemoveAll(dst); err != nil {
		return &domain.TransitionError{Prefix: prefix, From: from, To: to, Err: err}
	}
	if err := os.Rename(src, dst); err != nil {
		return &domain.TransitionError{Prefix: prefix, From: from, To: to, Err: err}
	}

	l.logger.Debug("dataset moved", "prefix", prefix, "from", from.String(), "to", to.String())
	return nil
}
