package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/nao1215/shotdiff/internal/model"
)

// CaptureCommand is the subcommand the child process runs.
const CaptureCommand = "capture"

// Exit codes of the capture subcommand.
const (
	// ExitOK means the batch ran. Individual pages may still have failed.
	ExitOK = 0

	// ExitBatchFailure means the batch could not run at all: missing or
	// empty URL list, or a browser that would not start.
	ExitBatchFailure = 1

	// ExitNotStarted is recorded when the child process could not be started.
	ExitNotStarted = -1
)

// Job describes one capture batch.
type Job struct {
	// URLsFile is the URL list to capture.
	URLsFile string

	// OutDir receives the PNGs. It is purged by the child first.
	OutDir string

	// Timeout is the per-page timeout.
	Timeout time.Duration

	// Wait is the per-page settle time.
	Wait time.Duration

	// Headful shows the browser window.
	Headful bool

	// UniqueKeys selects digest-suffixed file names.
	UniqueKeys bool

	// ConfigFile is passed on so that per-site overrides apply in the child.
	ConfigFile string

	// Verbose enables debug logging in the child.
	Verbose bool
}

// Args returns the command line of the capture subcommand for j.
func (j Job) Args() []string {
	args := []string{
		CaptureCommand,
		"--urls", j.URLsFile,
		"--out", j.OutDir,
		"--timeout", strconv.Itoa(int(j.Timeout / time.Second)),
		"--wait", strconv.FormatFloat(j.Wait.Seconds(), 'f', -1, 64),
	}
	if j.Headful {
		args = append(args, "--headful")
	}
	if j.UniqueKeys {
		args = append(args, "--unique-keys")
	}
	if j.ConfigFile != "" {
		args = append(args, "--config", j.ConfigFile)
	}
	if j.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// Executor runs capture jobs.
type Executor interface {
	Execute(ctx context.Context, job Job) model.Execution
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job Job) model.Execution

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job Job) model.Execution {
	return f(ctx, job)
}

// ProcessExecutor runs each job as a child process.
type ProcessExecutor struct {
	// path is the executable; by default the running binary.
	path string

	// prefix is inserted before the job arguments.
	prefix []string

	// env is appended to the inherited environment.
	env []string

	// maxOutput bounds the stored stdout and stderr tails.
	maxOutput int

	logger *slog.Logger
}

// Option configures a ProcessExecutor.
type Option func(*ProcessExecutor)

// WithCommand runs path with prefix arguments instead of re-executing
// the current binary.
func WithCommand(path string, prefix ...string) Option {
	return func(p *ProcessExecutor) {
		p.path = path
		p.prefix = prefix
	}
}

// WithEnv adds environment variables ("KEY=value") to the child.
func WithEnv(env ...string) Option {
	return func(p *ProcessExecutor) {
		p.env = append(p.env, env...)
	}
}

// WithMaxOutput sets how many trailing characters of output are kept.
func WithMaxOutput(n int) Option {
	return func(p *ProcessExecutor) {
		if n > 0 {
			p.maxOutput = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *ProcessExecutor) {
		p.logger = logger
	}
}

// NewProcessExecutor creates an executor that re-executes the running binary.
func NewProcessExecutor(opts ...Option) *ProcessExecutor {
	p := &ProcessExecutor{maxOutput: model.MaxOutputLength}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Execute runs job to completion. It never returns an error: a process that
// cannot be started is recorded with return code -1 and the start error as
// stderr.
func (p *ProcessExecutor) Execute(ctx context.Context, job Job) model.Execution {
	path, err := p.executable()
	if err != nil {
		return p.notStarted(err)
	}

	args := append(append([]string{}, p.prefix...), job.Args()...)
	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec // path is our own binary or a configured command
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("starting capture worker", "path", path, "urls", job.URLsFile, "out", job.OutDir)
	started := time.Now()
	err = cmd.Run()

	code := ExitOK
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return p.notStarted(err)
		}
		code = exitErr.ExitCode()
	}

	p.logger.Debug("capture worker finished", "returncode", code, "elapsed", time.Since(started))
	return model.NewExecution(code, model.TailOutput(stdout.String(), p.maxOutput), model.TailOutput(stderr.String(), p.maxOutput))
}

func (p *ProcessExecutor) executable() (string, error) {
	if p.path != "" {
		return p.path, nil
	}
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	return path, nil
}

func (p *ProcessExecutor) notStarted(err error) model.Execution {
	p.logger.Warn("capture worker could not start", "error", err)
	return model.NewExecution(ExitNotStarted, "", model.TailOutput(err.Error(), p.maxOutput))
}
