package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrStart is returned when the shell for a test command cannot be started.
var ErrStart = errors.New("command could not be started")

const (
	defaultGrace     = 2 * time.Second
	defaultWaitDelay = 5 * time.Second
)

// ExecutionResult is the captured outcome of one command.
type ExecutionResult struct {
	// Output holds stdout and stderr interleaved in arrival order.
	Output []byte

	// ExitCode is the process exit code, or -1 when it was killed by a signal.
	ExitCode int

	Duration time.Duration

	// TimedOut is set when the per-command deadline fired.
	TimedOut bool
}

// Executor runs test commands through the shell.
//
// Each command gets its own process group. When the command must be stopped
// the whole group receives SIGTERM, then SIGKILL after Grace.
type Executor struct {
	// WorkingDir is the directory commands run in.
	WorkingDir string

	// Grace is how long a stopped group may take to exit after SIGTERM.
	Grace time.Duration

	Logger *zap.Logger
}

// NewExecutor creates an Executor running commands in workingDir.
func NewExecutor(workingDir string) *Executor {
	return &Executor{WorkingDir: workingDir, Grace: defaultGrace, Logger: zap.NewNop()}
}

// Execute runs command and captures its merged output.
//
// A positive timeout bounds the command; hitting it is reported through
// ExecutionResult.TimedOut, not as an error. Cancellation of ctx itself
// stops the command and returns an error.
func (e *Executor) Execute(ctx context.Context, command string, timeout time.Duration) (*ExecutionResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("command is empty")
	}
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// The group is stopped by hand below, so the command is not bound to ctx.
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = e.WorkingDir
	cmd.Env = os.Environ()
	cmd.WaitDelay = defaultWaitDelay
	setProcessGroup(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}
	log.Debug("command started", zap.String("command", command), zap.Int("pid", cmd.Process.Pid))

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		grace := e.Grace
		if grace <= 0 {
			grace = defaultGrace
		}
		log.Debug("stopping process group", zap.Int("pid", cmd.Process.Pid), zap.Duration("grace", grace))
		_ = terminateGroup(cmd)
		select {
		case waitErr = <-done:
		case <-time.After(grace):
			_ = killGroup(cmd)
			waitErr = <-done
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
		}
		timedOut = true
	}

	res := &ExecutionResult{
		Output:   out.Bytes(),
		Duration: time.Since(start),
		TimedOut: timedOut,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// The shell exited cleanly but a background child kept the output open.
			log.Debug("output closed after wait delay", zap.String("command", command))
		default:
			return nil, fmt.Errorf("failed to execute command: %w", waitErr)
		}
	}
	return res, nil
}
