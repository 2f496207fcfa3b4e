package output

import "context"

// CatalogQuery narrows a catalog enumeration to a product and an optional
// year or year/month range.
type CatalogQuery struct {
	Product string // Product name, required
	Year    int    // Optional year filter
	Month   int    // Optional month filter, requires Year
}

// Catalog defines the secondary port to the dataset index that enumerates
// candidate source files. The pipeline treats it as an opaque enumerator.
type Catalog interface {
	// DatasetPaths returns the indexed source file paths for a query,
	// de-duplicated and sorted.
	DatasetPaths(ctx context.Context, q CatalogQuery) ([]string, error)
}
