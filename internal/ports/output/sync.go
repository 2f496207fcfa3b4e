package output

import "context"

// RemoteSync defines the secondary port to the external directory-sync
// tool. Failures carry the failed command, exit code and captured output.
type RemoteSync interface {
	// Sync synchronizes a local directory to a remote path, excluding files
	// matching the given patterns.
	Sync(ctx context.Context, localDir, remote string, excludes []string) error
}
