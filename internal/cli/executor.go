package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"minisciath/internal/config"
	"minisciath/internal/core"
	"minisciath/internal/history"
	"minisciath/internal/report"
	"minisciath/internal/suite"
	"minisciath/internal/watch"
)

// Streams are the writers a run reports to. Out receives the test report,
// Err receives log lines.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

type CLIResult struct {
	ExitCode int

	// Summary and Results describe the last completed run, if any.
	Summary *report.Summary
	Results []core.Result
}

// Execute is the default entrypoint for running a canonical invocation.
func Execute(ctx context.Context, inv Invocation, streams Streams) (CLIResult, error) {
	return ExecuteWithRunner(ctx, inv, streams, nil)
}

// ExecuteWithRunner runs inv using runner for individual tests. A nil runner
// selects the process-executing core.Runner.
//
// Responsibilities:
//   - Merge the defaults file under explicit flags.
//   - Load and select tests, including --rerun-failed from history.
//   - Run them through the scheduler and print the ordered report.
//   - Write the JSON report and the history record.
//   - Translate outcomes to semantic exit codes, including panics.
func ExecuteWithRunner(ctx context.Context, inv Invocation, streams Streams, runner core.TestRunner) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError
	if streams.Out == nil {
		streams.Out = io.Discard
	}
	if streams.Err == nil {
		streams.Err = io.Discard
	}

	if inv.Help {
		_, err := io.WriteString(streams.Out, inv.HelpText)
		res.ExitCode = ExitSuccess
		return res, err
	}

	logger := newLogger(streams.Err, inv.Verbose)
	defer func() { _ = logger.Sync() }()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during run", zap.Any("panic", r))
			res = CLIResult{ExitCode: ExitInternalError}
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, err := config.Load(inv.ConfigPath, inv.ConfigRequired)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	if cfg.Path != "" {
		logger.Debug("loaded defaults", zap.String("path", cfg.Path))
	}
	s, err := resolveSettings(inv, cfg)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	r := &run{
		inv:     inv,
		s:       s,
		logger:  logger,
		console: report.NewConsole(streams.Out, s.color),
		runner:  runner,
	}

	if !inv.Watch {
		return r.once(ctx)
	}

	w := &watch.Watcher{
		Paths:  []string{filepath.Dir(inv.SuitePath), inv.WorkDir},
		Logger: logger,
		Ignore: s.ignoredByWatch(inv.WorkDir),
	}
	last := CLIResult{ExitCode: ExitSuccess}
	werr := w.Run(ctx, func(ctx context.Context) {
		out, err := r.once(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintln(streams.Err, err)
		}
		last = out
		r.console.Info("Watching for changes. Press Ctrl+C to stop.")
	})
	if werr != nil {
		res.ExitCode = ExitConfigError
		return res, werr
	}
	return last, nil
}

// settings is the effective configuration after merging flags and the
// defaults file.
type settings struct {
	jobs       int
	timeout    time.Duration
	outputDir  string
	normalizer core.OutputNormalizer
	color      report.ColorMode
	reportPath string
	history    bool
	keepRuns   int
}

func resolveSettings(inv Invocation, cfg config.Config) (settings, error) {
	s := settings{
		jobs:       cfg.Jobs,
		outputDir:  inv.OutputDir,
		reportPath: inv.ReportPath,
		history:    !inv.NoHistory && cfg.HistoryEnabled(),
		keepRuns:   cfg.KeepRuns,
	}
	if inv.Explicit("jobs") {
		s.jobs = inv.Jobs
	}

	if inv.Explicit("timeout") {
		s.timeout = inv.Timeout
	} else {
		d, err := cfg.TimeoutDuration()
		if err != nil {
			return settings{}, err
		}
		s.timeout = d
	}

	if !inv.Explicit("output-dir") && cfg.OutputDir != "" {
		dir, err := resolveUnderWorkDir(inv.WorkDir, cfg.OutputDir)
		if err != nil {
			return settings{}, fmt.Errorf("output_dir: %w", err)
		}
		s.outputDir = dir
	}
	if !inv.Explicit("report") && cfg.Report != "" {
		p, err := resolveUnderWorkDir(inv.WorkDir, cfg.Report)
		if err != nil {
			return settings{}, fmt.Errorf("report: %w", err)
		}
		s.reportPath = p
	}

	mode := cfg.Normalize
	if inv.Explicit("normalize") {
		mode = inv.Normalize
	}
	n, err := core.NewNormalizer(mode)
	if err != nil {
		return settings{}, err
	}
	s.normalizer = n

	color := cfg.Color
	if inv.Explicit("color") {
		color = inv.Color
	}
	if s.color, err = report.ParseColorMode(color); err != nil {
		return settings{}, err
	}
	return s, nil
}

func (s settings) ignoredByWatch(workDir string) func(string) bool {
	return func(p string) bool {
		p = filepath.Clean(p)
		if s.reportPath != "" && p == s.reportPath {
			return true
		}
		if s.outputDir != workDir && strings.HasPrefix(p, s.outputDir+string(filepath.Separator)) {
			return true
		}
		return false
	}
}

type run struct {
	inv     Invocation
	s       settings
	logger  *zap.Logger
	console *report.Console
	runner  core.TestRunner
}

// once performs a single pass over the suite.
func (r *run) once(ctx context.Context) (CLIResult, error) {
	res := CLIResult{ExitCode: ExitInternalError}
	inv := r.inv

	all, err := suite.LoadFile(inv.SuitePath)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	filter := suite.Filter{
		Subset:       inv.TestSubset,
		OnlyGroup:    inv.OnlyGroup,
		ExcludeGroup: inv.ExcludeGroup,
	}
	if inv.RerunFailed {
		names, err := r.previousFailures(all)
		if err != nil {
			res.ExitCode = ExitCode(err)
			return res, err
		}
		if len(names) == 0 {
			r.console.Info("Previous run had no failures; nothing to re-run.")
			res.ExitCode = ExitSuccess
			return res, nil
		}
		filter.Subset = names
	}

	selected, err := suite.Select(all, filter)
	if err != nil {
		if errors.Is(err, suite.ErrUnknownSelection) {
			res.ExitCode = ExitInvalidInvocation
			return res, &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error(), Err: err}
		}
		return res, err
	}
	r.logger.Debug("selected tests", zap.Int("total", len(all)), zap.Int("selected", len(selected)))

	if err := os.MkdirAll(r.s.outputDir, 0o755); err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("create output dir: %w", err)
	}

	sched := core.NewScheduler(r.testRunner(), r.s.jobs)
	sched.Logger = r.logger

	start := time.Now()
	results, err := sched.Run(ctx, selected, r.console.Result)
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Debug("run interrupted", zap.Error(err))
			res.ExitCode = ExitInterrupted
			return res, fmt.Errorf("run interrupted: %w", ctx.Err())
		}
		return res, err
	}

	summary := report.Summarize(len(all), results, inv.Update, inv.OnlyGroup, inv.ExcludeGroup)
	r.console.Summary(summary, report.Hint{Program: inv.Program, Suite: inv.OriginalSuite, Args: inv.PathArgs()})
	res.Summary = &summary
	res.Results = results

	if r.s.reportPath != "" {
		if err := report.WriteJSON(r.s.reportPath, report.NewDocument(inv.SuitePath, summary, results)); err != nil {
			return res, err
		}
	}
	if r.s.history {
		r.record(start, results)
	}

	if summary.OK() {
		res.ExitCode = ExitSuccess
	} else {
		res.ExitCode = ExitTestFailure
	}
	return res, nil
}

func (r *run) testRunner() core.TestRunner {
	if r.runner != nil {
		return r.runner
	}
	tr := core.NewRunner(r.inv.WorkDir, r.s.outputDir)
	tr.Update = r.inv.Update
	tr.Timeout = r.s.timeout
	tr.Verifier = core.NewVerifier(r.s.normalizer)
	tr.Logger = r.logger
	tr.Executor.Logger = r.logger
	return tr
}

// previousFailures returns the failing tests of the latest recorded run of
// this suite that still exist in all.
func (r *run) previousFailures(all []suite.Test) ([]string, error) {
	st, err := history.NewStore(r.inv.WorkDir)
	if err != nil {
		return nil, err
	}
	st.Logger = r.logger
	prev, ok, err := st.LatestForSuite(r.inv.SuitePath)
	if err != nil {
		return nil, fmt.Errorf("read run history: %w", err)
	}
	if !ok {
		return nil, invalidInvocationf("--rerun-failed: no previous run recorded for %s", r.inv.OriginalSuite)
	}

	known := make(map[string]bool, len(all))
	for _, t := range all {
		known[t.Name] = true
	}
	var names []string
	for _, name := range prev.Failures() {
		if !known[name] {
			r.logger.Warn("previously failing test no longer defined", zap.String("test", name))
			continue
		}
		names = append(names, name)
	}
	r.logger.Debug("re-running failures", zap.String("run_id", prev.RunID), zap.Strings("tests", names))
	return names, nil
}

// record saves the run to history. Failures are logged, not fatal.
func (r *run) record(start time.Time, results []core.Result) {
	st, err := history.NewStore(r.inv.WorkDir)
	if err != nil {
		r.logger.Warn("history unavailable", zap.Error(err))
		return
	}
	st.Logger = r.logger
	rec := history.NewRun(r.inv.SuitePath, start, r.inv.Update, results)
	if err := st.SaveRun(rec); err != nil {
		r.logger.Warn("could not record run", zap.Error(err))
		return
	}
	removed, err := st.Prune(r.s.keepRuns)
	if err != nil {
		r.logger.Warn("could not prune run history", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		r.logger.Debug("pruned run history", zap.Strings("run_ids", removed))
	}
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	zc := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(zc).Named("minisciath")
}
