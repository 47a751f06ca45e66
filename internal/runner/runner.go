// Package runner invokes the external analysis tool and collects its output
// as decoded lines.
//
// A run spawns the tool, optionally streams a document's in-memory content
// to its stdin, and pumps stdout through a lineio.Decoder as it arrives. The
// caller gets back either the decoded line set, a no-output marker, or a
// tool-unavailable marker. "Executable not found" is sticky: the first
// occurrence sets a process-wide flag and surfaces a one-time notice;
// while the flag is set every run resolves silently as unavailable, so a
// misconfigured tool does not spam the user. Changing the executable path
// clears the flag.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/lintstorm/internal/lineio"
)

// ResultKind classifies a completed run.
type ResultKind int

const (
	// ResultLines indicates the tool produced at least one output line.
	ResultLines ResultKind = iota
	// ResultNoOutput indicates the tool ran and produced no output.
	ResultNoOutput
	// ResultToolUnavailable indicates the executable could not be found.
	ResultToolUnavailable
)

// String returns the result kind name.
func (k ResultKind) String() string {
	switch k {
	case ResultLines:
		return "lines"
	case ResultNoOutput:
		return "no-output"
	case ResultToolUnavailable:
		return "tool-unavailable"
	default:
		return "unknown"
	}
}

// Result is the outcome of a run.
type Result struct {
	// Kind classifies the outcome.
	Kind ResultKind

	// Lines are the decoded output lines, in order.
	Lines []string

	// ExitCode is the tool's exit code (-1 if it did not run).
	ExitCode int
}

// Request describes one tool invocation.
type Request struct {
	// Executable is the tool to spawn.
	Executable string

	// Dir is the working directory.
	Dir string

	// Args are the command-line arguments.
	Args []string

	// Path is the document's saved location, passed for attribution and,
	// when content is not streamed, read by the tool itself.
	Path string

	// Content is the document's in-memory text.
	Content string

	// UseContent streams Content to the tool's stdin instead of having
	// the tool read Path.
	UseContent bool
}

// Runner executes analysis tool runs. It is safe for concurrent use; the
// executable-missing flag is shared across all runs.
type Runner struct {
	missing atomic.Bool
	notice  func(string)
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotice sets the user-facing notice callback, invoked once when the
// configured executable first turns out to be missing.
func WithNotice(fn func(string)) Option {
	return func(r *Runner) {
		r.notice = fn
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ToolMissing reports whether the executable-missing flag is set.
func (r *Runner) ToolMissing() bool {
	return r.missing.Load()
}

// ResetToolMissing clears the executable-missing flag. Called when the
// configured executable path changes.
func (r *Runner) ResetToolMissing() {
	r.missing.Store(false)
}

// Run executes the tool and returns its decoded output. Run blocks until
// the tool exits; callers invoke it from the delayer's execution goroutine,
// so the scheduling flow is never blocked.
//
// A not-found executable is not an error: it resolves as
// ResultToolUnavailable. Any other spawn failure is returned as an error.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if r.missing.Load() {
		return Result{Kind: ResultToolUnavailable, ExitCode: -1}, nil
	}

	cmd := exec.CommandContext(ctx, req.Executable, req.Args...)
	cmd.Dir = req.Dir

	dec := lineio.NewDecoder()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err)
	}

	var stdin io.WriteCloser
	if req.UseContent {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return Result{ExitCode: -1}, fmt.Errorf("stdin pipe: %w", err)
		}
	}

	runID := uuid.NewString()
	r.logger.Debug("starting analysis run",
		"run", runID,
		"executable", req.Executable,
		"dir", req.Dir,
		"path", req.Path,
		"stdin", req.UseContent,
	)

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			if r.missing.CompareAndSwap(false, true) && r.notice != nil {
				r.notice(fmt.Sprintf("analysis tool %q not found; linting disabled until the executable path changes", req.Executable))
			}
			return Result{Kind: ResultToolUnavailable, ExitCode: -1}, nil
		}
		return Result{ExitCode: -1}, fmt.Errorf("starting %s: %w", req.Executable, err)
	}

	if req.UseContent {
		go func() {
			if _, err := io.WriteString(stdin, req.Content); err != nil {
				r.logger.Debug("stdin write failed", "run", runID, "error", err)
			}
			stdin.Close()
		}()
	}

	// Pump stdout as it arrives; the line set completes when the pipe
	// closes at process exit.
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		if _, err := io.Copy(dec, stdout); err != nil {
			r.logger.Debug("stdout pump ended", "run", runID, "error", err)
		}
		dec.Flush()
	}()

	<-pumped
	err = cmd.Wait()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{ExitCode: exitCode}, fmt.Errorf("waiting for %s: %w", req.Executable, err)
		}
		// Non-zero exit is normal for linters with findings; the output
		// decides the result.
	}

	lines := dec.Lines()
	r.logger.Debug("analysis run finished",
		"run", runID,
		"exit", exitCode,
		"lines", len(lines),
	)

	if len(lines) == 0 {
		return Result{Kind: ResultNoOutput, ExitCode: exitCode}, nil
	}
	return Result{Kind: ResultLines, Lines: lines, ExitCode: exitCode}, nil
}

// isNotFound distinguishes a missing executable from other spawn failures.
// exec reports PATH misses as exec.ErrNotFound and absolute-path misses as
// fs.ErrNotExist.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
