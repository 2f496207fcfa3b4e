// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/rasterd/cogstream/internal/adapters/awscli"
	"github.com/rasterd/cogstream/internal/adapters/catalog"
	"github.com/rasterd/cogstream/internal/adapters/gdal"
	"github.com/rasterd/cogstream/internal/adapters/inventory"
	"github.com/rasterd/cogstream/internal/adapters/metrics"
	"github.com/rasterd/cogstream/internal/adapters/ops"
	"github.com/rasterd/cogstream/internal/adapters/staging"
	"github.com/rasterd/cogstream/internal/adapters/watcher"
	"github.com/rasterd/cogstream/internal/application"
	"github.com/rasterd/cogstream/internal/command"
	"github.com/rasterd/cogstream/internal/config"
	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/input"
	"github.com/rasterd/cogstream/internal/ports/output"
)

// lockFilename is the advisory lock guarding the upload watcher, kept in
// the output root next to the state directories.
const lockFilename = ".watch.lock"

// App holds the components shared by every subcommand. Command-specific
// collaborators (catalog, sync, watch loop) are wired by the entrypoints.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Version  string
	Staging  *staging.Layout
	Engine   output.RasterEngine
	Metrics  *metrics.Collector
	Policies map[string]domain.Policy

	runner    command.Runner
	collector output.MetricsCollector
}

// New creates and initializes a new application.
func New(cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	policies, err := cfg.Policies()
	if err != nil {
		return nil, fmt.Errorf("loading product policies: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Version:  version,
		Policies: policies,
		runner:   command.NewExecRunner(logger),
	}

	// Prometheus collectors are only worth feeding when the ops server can
	// expose them.
	if cfg.Ops.Enabled {
		app.Metrics = metrics.NewCollector("cogstream")
		app.collector = app.Metrics
	} else {
		app.collector = &output.NoOpMetrics{}
	}

	app.Engine = gdal.New(gdal.Config{
		TranslateBinary:  cfg.Engine.TranslateBinary,
		AddoBinary:       cfg.Engine.AddoBinary,
		InfoBinary:       cfg.Engine.InfoBinary,
		NcdumpBinary:     cfg.Engine.NcdumpBinary,
		MetadataVariable: cfg.Engine.MetadataVariable,
	}, app.runner, logger)

	app.Staging = staging.NewLayout(cfg.Output.Dir, logger)

	return app, nil
}

// Worklist computes the source files still needing conversion.
func (a *App) Worklist(ctx context.Context, req input.WorklistRequest) ([]string, error) {
	cat, err := catalog.Open(catalog.Config{
		Driver: a.Config.Catalog.Driver,
		DSN:    a.Config.Catalog.DSN,
		Table:  a.Config.Catalog.Table,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	var inv output.Inventory
	if req.DiffRemote {
		s3inv, err := inventory.NewS3Inventory(ctx, inventory.S3Config{
			Region:          a.Config.Inventory.Region,
			Endpoint:        a.Config.Inventory.Endpoint,
			AccessKeyID:     a.Config.Inventory.AccessKeyID,
			SecretAccessKey: a.Config.Inventory.SecretAccessKey,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("initializing inventory: %w", err)
		}
		inv = s3inv
	}

	service := application.NewWorklistService(
		cat, inv, a.Engine, a.Policies, a.Logger, a.engineOptions())
	return service.List(ctx, req)
}

// Convert runs one batch conversion over the staging area.
func (a *App) Convert(ctx context.Context, req input.ConvertRequest) (*input.BatchResult, error) {
	if a.Config.Output.Dir == "" {
		return nil, errors.New("no output directory configured")
	}

	converter := application.NewConverter(a.Engine, a.Staging, a.collector, a.Logger,
		application.ConverterConfig{
			OverviewLevels: a.Config.Engine.OverviewLevels,
			BlockSize:      a.Config.Engine.BlockSize,
			Profile: output.COGProfile{
				Compress:  a.Config.Engine.Compress,
				ZLevel:    a.Config.Engine.ZLevel,
				Predictor: a.Config.Engine.Predictor,
				BlockSize: a.Config.Engine.BlockSize,
			},
			EngineOptions:     a.engineOptions(),
			ScratchDir:        a.Config.Conversion.ScratchDir,
			HoldOnBandFailure: a.Config.Conversion.BandFailurePolicy == "hold",
		})

	scheduler := application.NewScheduler(
		converter, a.Staging, a.Policies, a.collector, a.Logger,
		a.Config.Conversion.Workers)
	return scheduler.ConvertBatch(ctx, req)
}

// Upload runs the upload watch loop until it goes idle or the context is
// canceled. An advisory lock on the output root keeps a second watcher off
// the same staging area.
func (a *App) Upload(ctx context.Context) error {
	if a.Config.Output.Dir == "" {
		return errors.New("no output directory configured")
	}
	if err := a.Staging.Ensure(); err != nil {
		return err
	}

	lock := flock.New(filepath.Join(a.Staging.Root(), lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring watcher lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another watcher is running on %s", a.Staging.Root())
	}
	defer func() { _ = lock.Unlock() }()

	syncer := awscli.NewSyncer(awscli.Config{
		Binary:      a.Config.Sync.Binary,
		Profile:     a.Config.Sync.Profile,
		EndpointURL: a.Config.Sync.EndpointURL,
		ExtraArgs:   a.Config.Sync.ExtraArgs,
	}, a.runner, a.Logger)

	uploader := application.NewUploader(a.Staging, syncer, a.collector, a.Logger,
		application.UploaderConfig{
			PollInterval: a.Config.Upload.PollInterval,
			IdleTimeout:  a.Config.Upload.IdleTimeout,
			StartupGrace: a.Config.Upload.StartupGrace,
			Retain:       a.Config.Upload.Retain,
		})

	// The event wake is best-effort on top of the fixed polling cadence, so
	// setup failures only cost latency, never correctness.
	if a.Config.Upload.EventWake {
		w, err := watcher.New(watcher.Config{
			Dir: a.Staging.StateDir(domain.StateToUpload),
		}, func(context.Context, string) { uploader.Wake() }, a.Logger)
		if err != nil {
			a.Logger.Warn("event wake unavailable", "error", err)
		} else if err := w.Start(ctx); err != nil {
			a.Logger.Warn("event wake unavailable", "error", err)
			_ = w.Stop()
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	if a.Config.Ops.Enabled {
		status := application.NewStatusService(a.Staging, uploader, a.Version)
		var metricsHandler http.Handler
		if a.Metrics != nil {
			metricsHandler = metrics.Handler()
		}
		server := ops.NewServer(a.Config.Ops, status, metricsHandler, a.Logger)

		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("ops server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	return uploader.Watch(ctx)
}

// engineOptions returns the configured per-invocation engine options.
func (a *App) engineOptions() output.RuntimeConfig {
	return output.RuntimeConfig(a.Config.Engine.Options)
}
