// Package terminal runs shell commands for terminal sessions and records
// their results in the session history.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/thebtf/devdeck/internal/metrics"
	"github.com/thebtf/devdeck/internal/termtext"
	"github.com/thebtf/devdeck/pkg/models"
)

const (
	// DefaultTimeout bounds the wall-clock time of a single command.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxOutputBytes caps captured output per stream.
	DefaultMaxOutputBytes = 10 * 1024 * 1024

	// DefaultMaxConcurrent limits commands running at the same time.
	DefaultMaxConcurrent = 8

	// TruncationMarker is appended to a stream that hit the output cap.
	TruncationMarker = "[output truncated]"

	// waitDelay is how long Wait keeps draining pipes after the process is killed.
	waitDelay = 2 * time.Second
)

// colourEnv disables coloured output in the common CLI tools.
var colourEnv = []string{
	"NO_COLOR=1",
	"FORCE_COLOR=0",
	"TERM=dumb",
	"CLICOLOR=0",
}

// RunnerConfig holds command runner settings.
type RunnerConfig struct {
	WorkDir        string
	Timeout        time.Duration
	MaxOutputBytes int
	MaxConcurrent  int
	StripANSI      bool
}

// DefaultRunnerConfig returns the runner defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		MaxConcurrent:  DefaultMaxConcurrent,
		StripANSI:      true,
	}
}

// Runner executes shell commands with a timeout and bounded output.
type Runner struct {
	sem     *semaphore.Weighted
	metrics *metrics.Instruments
	cfg     RunnerConfig
}

// NewRunner creates a runner. Zero values in cfg fall back to the defaults.
func NewRunner(cfg RunnerConfig, inst *metrics.Instruments) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	return &Runner{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		metrics: inst,
	}
}

// Run executes command and returns its normalized result.
// A failing command is not an error: its exit code and output are in the record.
// The only error is ctx ending while waiting for a free slot.
func (r *Runner) Run(ctx context.Context, command string) (models.ExecutionRecord, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return models.ExecutionRecord{}, fmt.Errorf("wait for command slot: %w", err)
	}
	defer r.sem.Release(1)

	// The run outlives the request; only the timeout stops it.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
	defer cancel()

	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(r.cfg.MaxOutputBytes)

	cmd := shellCommand(runCtx, command)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = append(os.Environ(), colourEnv...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	output := r.clean(stdout.String() + stderr.String())
	exitCode := 0
	if runErr != nil {
		exitCode = 1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() > 0 {
			exitCode = exitErr.ExitCode()
		}
		if timedOut {
			output = joinLines(output, fmt.Sprintf("Command timed out after %s", r.cfg.Timeout))
		}
		if output == "" {
			output = runErr.Error()
		}
	}
	if output == "" {
		output = models.EmptyOutputPlaceholder
	}

	r.metrics.RecordCommand(ctx, exitCode, elapsed)
	log.Debug().
		Str("command", command).
		Int("exitCode", exitCode).
		Bool("timedOut", timedOut).
		Dur("duration", elapsed).
		Msg("Command finished")

	return models.ExecutionRecord{
		Command:   command,
		Output:    output,
		ExitCode:  exitCode,
		Timestamp: models.FormatTimestamp(time.Now()),
	}, nil
}

func (r *Runner) clean(text string) string {
	if r.cfg.StripANSI {
		return termtext.Clean(text)
	}
	return strings.TrimSpace(text)
}

func joinLines(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest.
// Each stream is written by a single copying goroutine.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

// Write never fails so the child process is not killed by a short write.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	switch {
	case remaining <= 0:
		if len(p) > 0 {
			b.truncated = true
		}
	case len(p) > remaining:
		b.buf.Write(p[:remaining])
		b.truncated = true
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n" + TruncationMarker + "\n"
	}
	return b.buf.String()
}
