package output

import "context"

// Inventory defines the secondary port for listing datasets already present
// in the remote store, used to compute work-list differences.
type Inventory interface {
	// DatasetPrefixes returns the set of dataset prefixes that have a
	// metadata document under baseDir in the bucket.
	DatasetPrefixes(ctx context.Context, bucket, baseDir string) (map[string]struct{}, error)
}
