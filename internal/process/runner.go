// Package process runs external tools with document text on stdin.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/dshills/langcore/pkg/types"
)

// DefaultTimeout bounds a single run when the caller sets none
const DefaultTimeout = 30 * time.Second

// Result is the outcome of a finished process. ExitCode is -1 when the
// process did not exit normally.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner starts a command and feeds it stdin
type Runner interface {
	Run(ctx context.Context, command []string, stdin string) (*Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	timeout time.Duration
	dir     string
	logger  *slog.Logger
}

// Option configures an ExecRunner
type Option func(*ExecRunner)

// WithTimeout sets the per-run timeout
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) { r.timeout = d }
}

// WithDir sets the working directory of started commands
func WithDir(dir string) Option {
	return func(r *ExecRunner) { r.dir = dir }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) { r.logger = logger }
}

// NewExecRunner creates a runner
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "process")
	return r
}

// Run starts command, writes stdin and waits for it to exit. A non-zero
// exit is not an error; failing to start the process is.
func (r *ExecRunner) Run(ctx context.Context, command []string, stdin string) (*Result, error) {
	if len(command) == 0 {
		return nil, errors.New("empty command")
	}

	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, command[0], command[1:]...)
	cmd.Dir = r.dir
	cmd.Stdin = strings.NewReader(stdin)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if ctx.Err() != nil {
		return nil, types.Cancelled(ctx.Err())
	}

	result := &Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", command[0], err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("process finished",
		"command", command[0],
		"exit_code", result.ExitCode,
		"duration", time.Since(start),
	)
	return result, nil
}
