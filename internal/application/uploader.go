package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// Uploader watches the upload staging area and pushes ready datasets to
// their recorded remote destinations, one at a time.
type Uploader struct {
	staging output.StagingArea
	remote  output.RemoteSync
	metrics output.MetricsCollector
	logger  *slog.Logger
	cfg     UploaderConfig

	wake chan struct{}

	mu             sync.Mutex
	lastProcessed  time.Time
	processedTotal int
}

// UploaderConfig holds the watch loop timing and retention settings.
type UploaderConfig struct {
	// PollInterval is the pause between scans of the upload area.
	PollInterval time.Duration

	// IdleTimeout ends the watch once this long has passed since the last
	// terminal disposition.
	IdleTimeout time.Duration

	// StartupGrace bounds the initial wait when nothing has ever been
	// processed. Zero keeps the watcher polling forever in that case.
	StartupGrace time.Duration

	// Retain moves uploaded datasets to COMPLETE instead of deleting them.
	Retain bool
}

// NewUploader creates a new upload watcher.
func NewUploader(
	staging output.StagingArea,
	remote output.RemoteSync,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg UploaderConfig,
) *Uploader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}

	return &Uploader{
		staging: staging,
		remote:  remote,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
	}
}

// Watch polls the upload area until the idle timeout elapses or the context
// is canceled. Datasets left behind by interrupted runs are picked up on the
// first scan.
func (u *Uploader) Watch(ctx context.Context) error {
	if err := u.staging.Ensure(); err != nil {
		return err
	}
	u.logger.Info("upload watcher started",
		"poll_interval", u.cfg.PollInterval,
		"idle_timeout", u.cfg.IdleTimeout,
		"retain", u.cfg.Retain,
	)

	start := time.Now()
	for {
		if _, err := u.Sweep(ctx); err != nil {
			return err
		}
		if u.idle(start) {
			u.logger.Info("upload watcher idle, exiting", "processed", u.ProcessedTotal())
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-u.wake:
			u.logger.Debug("woken by dataset arrival")
		case <-time.After(u.cfg.PollInterval):
		}
	}
}

// Wake nudges the watcher to scan immediately instead of waiting out the
// poll interval. Safe to call from any goroutine; extra wakes coalesce.
func (u *Uploader) Wake() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// Sweep performs one scan of the upload area, uploading every marker-bearing
// dataset. Returns the number of datasets given a terminal disposition.
func (u *Uploader) Sweep(ctx context.Context) (int, error) {
	prefixes, err := u.staging.List(domain.StateToUpload)
	if err != nil {
		return 0, err
	}
	u.metrics.SetDatasetsReady(len(prefixes))

	processed := 0
	for _, prefix := range prefixes {
		if err := u.uploadDataset(ctx, prefix); err != nil {
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			if errors.Is(err, domain.ErrMarkerNotFound) {
				// Not ours to ship; a dataset is promoted only after its
				// marker is written.
				u.logger.Warn("dataset has no upload marker, skipping", "prefix", prefix)
				continue
			}
			u.logger.Error("dataset upload failed", "prefix", prefix, "error", err)
			if ferr := u.staging.Finish(prefix, false); ferr != nil {
				u.logger.Error("could not quarantine failed dataset",
					"prefix", prefix, "error", ferr)
			}
			u.markProcessed()
			processed++
			continue
		}
		u.markProcessed()
		processed++
	}
	return processed, nil
}

// uploadDataset syncs one dataset to its marker destination and disposes of
// the local copy.
func (u *Uploader) uploadDataset(ctx context.Context, prefix string) error {
	destination, err := u.staging.ReadMarker(prefix)
	if err != nil {
		return err
	}

	dir := u.staging.DatasetDir(domain.StateToUpload, prefix)
	u.logger.Info("uploading dataset", "prefix", prefix, "destination", destination)

	start := time.Now()
	err = u.remote.Sync(ctx, dir, destination, []string{domain.MarkerFilename})
	duration := time.Since(start)
	u.metrics.ObserveUploadDuration(duration)
	if err != nil {
		u.metrics.IncUploads(false)
		return &domain.SyncError{Prefix: prefix, Destination: destination, Err: err}
	}
	u.metrics.IncUploads(true)

	if u.cfg.Retain {
		err = u.staging.Finish(prefix, true)
	} else {
		err = u.staging.Remove(domain.StateToUpload, prefix)
	}
	if err != nil {
		return err
	}

	u.logger.Info("dataset uploaded",
		"prefix", prefix, "destination", destination, "duration", duration)
	return nil
}

// idle reports whether the idle-exit condition has been reached.
func (u *Uploader) idle(start time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.lastProcessed.IsZero() {
		// Nothing processed yet: keep waiting for work, bounded only by the
		// startup grace when one is configured.
		return u.cfg.StartupGrace > 0 && time.Since(start) > u.cfg.StartupGrace
	}
	return time.Since(u.lastProcessed) > u.cfg.IdleTimeout
}

func (u *Uploader) markProcessed() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastProcessed = time.Now()
	u.processedTotal++
}

// LastProcessed returns the time of the most recent terminal disposition,
// zero when nothing has been processed.
func (u *Uploader) LastProcessed() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastProcessed
}

// ProcessedTotal returns the number of datasets given a terminal
// disposition since the watcher started.
func (u *Uploader) ProcessedTotal() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.processedTotal
}
