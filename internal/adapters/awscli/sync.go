// Package awscli transfers staged datasets to object storage by shelling
// out to the aws command line tool.
package awscli

import (
	"context"
	"log/slog"

	"github.com/rasterd/cogstream/internal/command"
)

// DefaultBinary is the aws cli executable resolved from PATH.
const DefaultBinary = "aws"

// Config holds awscli adapter settings.
type Config struct {
	// Binary is the aws executable. Defaults to DefaultBinary.
	Binary string
	// Profile selects a named credentials profile, when set.
	Profile string
	// EndpointURL overrides the S3 endpoint, when set.
	EndpointURL string
	// ExtraArgs are appended verbatim to every sync invocation.
	ExtraArgs []string
}

// Syncer implements output.RemoteSync over aws s3 sync.
type Syncer struct {
	cfg    Config
	runner command.Runner
	logger *slog.Logger
}

// NewSyncer creates a Syncer with the given configuration.
func NewSyncer(cfg Config, runner command.Runner, logger *slog.Logger) *Syncer {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	return &Syncer{
		cfg:    cfg,
		runner: runner,
		logger: logger.With("component", "awscli"),
	}
}

// Sync implements output.RemoteSync. The exit status of aws s3 sync covers
// every transferred object, so a nil return means the whole directory made
// it to the destination.
func (s *Syncer) Sync(ctx context.Context, localDir, remote string, excludes []string) error {
	args := []string{"s3", "sync", localDir, remote, "--only-show-errors"}
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}
	if s.cfg.Profile != "" {
		args = append(args, "--profile", s.cfg.Profile)
	}
	if s.cfg.EndpointURL != "" {
		args = append(args, "--endpoint-url", s.cfg.EndpointURL)
	}
	args = append(args, s.cfg.ExtraArgs...)

	s.logger.Debug("syncing dataset", "local", localDir, "remote", remote)
	_, err := s.runner.Run(ctx, command.Invocation{Path: s.cfg.Binary, Args: args})
	return err
}
