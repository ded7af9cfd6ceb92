package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"minisciath/internal/suite"
)

// Runner executes single tests and records their outcome.
//
// The flow for one test:
//  1. Execute the command (stdout and stderr merged).
//  2. Write the capture to <OutputDir>/<name>.output, or to the expected
//     file when Update is set.
//  3. Classify: errored, updated, missing, or passed/failed by the Verifier.
//
// Output files are replaced atomically, so an interrupted run never leaves a
// truncated expected file behind.
type Runner struct {
	// WorkingDir is where commands run and relative expected paths resolve.
	WorkingDir string

	// OutputDir receives <name>.output files.
	OutputDir string

	// Update rewrites expected files instead of verifying them.
	Update bool

	// Timeout bounds each command unless the test sets its own.
	Timeout time.Duration

	Executor *Executor
	Verifier *Verifier
	Logger   *zap.Logger
}

// NewRunner creates a Runner with byte-exact verification.
func NewRunner(workingDir, outputDir string) *Runner {
	if outputDir == "" {
		outputDir = workingDir
	}
	return &Runner{
		WorkingDir: workingDir,
		OutputDir:  outputDir,
		Executor:   NewExecutor(workingDir),
		Verifier:   NewVerifier(nil),
		Logger:     zap.NewNop(),
	}
}

// Run executes t. The returned error is reserved for conditions that should
// abort the whole run: cancellation and failures writing output files.
func (r *Runner) Run(ctx context.Context, t suite.Test) (Result, error) {
	log := r.logger().With(zap.String("test", t.Name))
	res := Result{
		Test:         t,
		ExpectedPath: r.resolve(t.Expected),
	}

	timeout := r.Timeout
	if t.Timeout > 0 {
		timeout = t.Timeout
	}

	ran, err := r.Executor.Execute(ctx, t.Command, timeout)
	if err != nil {
		if errors.Is(err, ErrStart) {
			log.Warn("command did not start", zap.Error(err))
			res.Outcome = OutcomeErrored
			res.Reason = err.Error()
			return res, nil
		}
		return res, fmt.Errorf("test %s: %w", t.Name, err)
	}
	res.ExitCode = ran.ExitCode
	res.Duration = ran.Duration
	log.Debug("command finished",
		zap.Int("exit_code", ran.ExitCode),
		zap.Duration("duration", ran.Duration),
		zap.Bool("timed_out", ran.TimedOut),
		zap.Int("bytes", len(ran.Output)),
	)

	if ran.TimedOut {
		res.Outcome = OutcomeErrored
		res.Reason = fmt.Sprintf("timed out after %s", timeout)
		// Partial output never becomes a golden file.
		if !r.Update {
			res.OutputPath = filepath.Join(r.OutputDir, t.OutputName())
			if err := writeOutput(res.OutputPath, ran.Output); err != nil {
				return res, fmt.Errorf("test %s: %w", t.Name, err)
			}
		}
		return res, nil
	}

	if r.Update {
		res.OutputPath = res.ExpectedPath
		if err := os.MkdirAll(filepath.Dir(res.ExpectedPath), 0o755); err != nil {
			return res, fmt.Errorf("test %s: create expected dir: %w", t.Name, err)
		}
		if err := writeOutput(res.ExpectedPath, ran.Output); err != nil {
			return res, fmt.Errorf("test %s: %w", t.Name, err)
		}
		res.Outcome = OutcomeUpdated
		return res, nil
	}

	res.OutputPath = filepath.Join(r.OutputDir, t.OutputName())
	if err := writeOutput(res.OutputPath, ran.Output); err != nil {
		return res, fmt.Errorf("test %s: %w", t.Name, err)
	}

	expected, err := os.ReadFile(res.ExpectedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			res.Outcome = OutcomeMissing
			return res, nil
		}
		return res, fmt.Errorf("test %s: read expected: %w", t.Name, err)
	}

	v := r.Verifier
	if v == nil {
		v = NewVerifier(nil)
	}
	verdict := v.Compare(expected, ran.Output, t.Expected, r.display(res.OutputPath))
	if verdict.Match {
		res.Outcome = OutcomePassed
	} else {
		res.Outcome = OutcomeFailed
		res.Diff = verdict.Diff
	}
	return res, nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.WorkingDir, p)
}

// display shortens p relative to the working directory when it lies below it.
func (r *Runner) display(p string) string {
	rel, err := filepath.Rel(r.WorkingDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}

func writeOutput(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
