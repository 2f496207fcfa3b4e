// Package catalog looks up indexed dataset locations in an ODC-style
// index database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	// Drivers registered for the supported catalog backends.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// DefaultTable is the view or table holding one row per indexed dataset
// location, with product, center_time and uri columns.
const DefaultTable = "datasets"

// Config holds catalog connection settings.
type Config struct {
	// Driver is the database/sql driver name: postgres or sqlite3.
	Driver string
	// DSN is the driver-specific connection string.
	DSN string
	// Table names the dataset location view. May be schema-qualified.
	// Defaults to DefaultTable.
	Table string
}

// SQLCatalog implements output.Catalog over database/sql.
type SQLCatalog struct {
	cfg    Config
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the catalog database. The connection is lazy; the first
// query reports connectivity problems.
func Open(cfg Config, logger *slog.Logger) (*SQLCatalog, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog (%s): %w", cfg.Driver, err)
	}
	return &SQLCatalog{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "catalog"),
	}, nil
}

// Close releases the database connection.
func (c *SQLCatalog) Close() error {
	return c.db.Close()
}

// DatasetPaths implements output.Catalog. Returned paths are de-duplicated
// and sorted; indexed locations that resolve to an empty path are dropped.
func (c *SQLCatalog) DatasetPaths(ctx context.Context, q output.CatalogQuery) ([]string, error) {
	query := fmt.Sprintf("SELECT uri FROM %s WHERE product = $1", c.cfg.Table) //#nosec G201 -- table name from operator configuration
	args := []interface{}{q.Product}

	if start, end, ok := queryRange(q.Year, q.Month); ok {
		query += " AND center_time >= $2 AND center_time < $3"
		args = append(args, start, end)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query for product %q: %v", domain.ErrCatalogUnavailable, q.Product, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		if path := pathFromURI(uri); path != "" {
			seen[path] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading rows for product %q: %v", domain.ErrCatalogUnavailable, q.Product, err)
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	c.logger.Debug("catalog query", "product", q.Product, "year", q.Year, "month", q.Month, "datasets", len(paths))
	return paths, nil
}

// queryRange derives the half-open [start, end) interval for a year and
// optional month. A month without a year is ignored.
func queryRange(year, month int) (start, end time.Time, ok bool) {
	switch {
	case year > 0 && month > 0:
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), true
	case year > 0:
		start = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// pathFromURI reduces an indexed location to a filesystem path: the URI
// fragment (multi-dataset part selector) and scheme are stripped.
func pathFromURI(uri string) string {
	if i := strings.Index(uri, "#"); i >= 0 {
		uri = uri[:i]
	}
	if i := strings.Index(uri, "://"); i >= 0 {
		uri = uri[i+len("://"):]
	}
	return uri
}
