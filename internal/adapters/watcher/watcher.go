// Package watcher notifies the upload loop when datasets land in the
// upload staging directory, so a scan starts without waiting out the
// poll interval.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler is called with the dataset prefix once an arrival has settled.
type Handler func(ctx context.Context, prefix string)

// Watcher watches one staging directory for dataset arrivals. Arrivals are
// debounced so a burst of promotions from a parallel conversion run
// collapses into a few handler calls.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	logger    *slog.Logger
	dir       string
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// Config holds watcher configuration.
type Config struct {
	// Dir is the directory to watch for new dataset directories.
	Dir string
	// Debounce is how long an arrival must sit quiet before the handler
	// fires. Defaults to 500ms.
	Debounce time.Duration
}

// New creates a new arrival watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger.With("component", "watcher"),
		dir:       cfg.Dir,
		debounce:  cfg.Debounce,
		pending:   make(map[string]time.Time),
	}, nil
}

// Start begins watching. The watch is best-effort: the upload loop still
// polls, so a missed event only costs one poll interval.
func (w *Watcher) Start(ctx context.Context) error {
	absDir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(absDir); err != nil {
		return err
	}
	w.logger.Info("watching for dataset arrivals", "dir", absDir)

	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// eventLoop collects fsnotify events into the pending set.
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			prefix, ok := arrivalPrefix(event)
			if !ok {
				continue
			}
			w.logger.Debug("dataset arrival event", "prefix", prefix)

			w.mu.Lock()
			w.pending[prefix] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// debounceLoop fires the handler for arrivals that have settled.
func (w *Watcher) debounceLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for prefix, arrived := range w.pending {
		if now.Sub(arrived) < w.debounce {
			continue
		}
		delete(w.pending, prefix)

		w.logger.Info("dataset arrived", "prefix", prefix)
		go w.handler(ctx, prefix)
	}
}

// arrivalPrefix extracts the dataset prefix from an event, reporting
// whether the event is an arrival worth acting on. Promotion renames a
// dataset directory into place, which surfaces as a create; removals are
// the upload loop's own doing and are ignored.
func arrivalPrefix(event fsnotify.Event) (string, bool) {
	if !event.Op.Has(fsnotify.Create) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if base == "." || strings.HasPrefix(base, ".") {
		return "", false
	}
	return base, true
}
