// Package command provides the shared runner for the external tools the
// pipeline shells out to.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rasterd/cogstream/internal/domain"
)

// Invocation describes one external command execution.
type Invocation struct {
	Path string   // Binary to execute
	Args []string // Arguments, excluding the binary itself
	Dir  string   // Working directory, empty for the process default
}

// String returns the full command line.
func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Path
	}
	return inv.Path + " " + strings.Join(inv.Args, " ")
}

// CommandError carries the failed command line, its exit code and captured
// output.
type CommandError struct {
	Cmd      string // Full command line
	ExitCode int    // Process exit code, -1 when the process did not start
	Output   string // Captured stderr, falling back to stdout
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed with code %d: %s", e.Cmd, e.ExitCode, e.Output)
}

// Unwrap returns the underlying error type.
func (e *CommandError) Unwrap() error {
	return domain.ErrExternalTool
}

// Runner executes external commands. The returned bytes are the command's
// standard output.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner runs invocations through os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a runner logging through the given logger.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		if output == "" {
			output = err.Error()
		}
		r.logger.Error("command failed",
			"cmd", inv.Path,
			"args", inv.Args,
			"exit_code", exitCode,
			"duration", duration)
		return stdout.Bytes(), &CommandError{
			Cmd:      inv.String(),
			ExitCode: exitCode,
			Output:   output,
		}
	}

	r.logger.Debug("command completed",
		"cmd", inv.Path,
		"args", inv.Args,
		"duration", duration)
	return stdout.Bytes(), nil
}
