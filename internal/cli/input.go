package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"minisciath/internal/config"
	"minisciath/internal/core"
	"minisciath/internal/report"
	"minisciath/internal/suite"
)

const (
	ExitSuccess           = 0
	ExitTestFailure       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4

	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// Invocation is the canonicalized description of a run.
//
// All paths are absolute and cleaned. Relative paths given on the command
// line are resolved against WorkDir.
type Invocation struct {
	// Program is how the runner was started; used in re-run hints.
	Program string

	SuitePath     string
	OriginalSuite string
	WorkDir       string
	OutputDir     string

	// ConfigPath is the defaults file. ConfigRequired is set when it was
	// named explicitly with --config.
	ConfigPath     string
	ConfigRequired bool

	TestSubset   []string
	Update       bool
	OnlyGroup    string
	ExcludeGroup string
	Jobs         int
	Timeout      time.Duration
	Normalize    string
	Color        string
	ReportPath   string
	RerunFailed  bool
	NoHistory    bool
	Watch        bool
	Verbose      bool

	// Help is set when -h/--help was given; HelpText holds the usage.
	Help     bool
	HelpText string

	// explicit records the flags given on the command line.
	explicit map[string]bool
}

// Explicit reports whether flag was given on the command line.
func (inv Invocation) Explicit(flag string) bool {
	return inv.explicit[flag]
}

// PathArgs returns the path flags given on the command line, with their
// canonical values, for building a command that behaves the same from any
// directory.
func (inv Invocation) PathArgs() []string {
	var args []string
	if inv.Explicit("workdir") {
		args = append(args, "--workdir", inv.WorkDir)
	}
	if inv.Explicit("output-dir") {
		args = append(args, "--output-dir", inv.OutputDir)
	}
	if inv.Explicit("config") {
		args = append(args, "--config", inv.ConfigPath)
	}
	return args
}

type InvocationError struct {
	ExitCode int
	Message  string

	// Err is the underlying cause, if any.
	Err error
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *InvocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

type rawFlags struct {
	subset       string
	update       bool
	onlyGroup    string
	excludeGroup string
	jobs         int
	timeout      time.Duration
	workDir      string
	outputDir    string
	normalize    string
	color        string
	reportPath   string
	configPath   string
	rerunFailed  bool
	noHistory    bool
	watch        bool
	verbose      bool
}

func newCommand(raw *rawFlags, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minisciath <input_filename>",
		Short: "Run golden-output regression tests",
		Long: `Runs each test command from a YAML test file, captures its output and
compares it with the expected output file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	f := cmd.Flags()
	f.SortFlags = false
	f.StringVarP(&raw.subset, "test-subset", "t", "", "comma-separated names of tests to run")
	f.BoolVarP(&raw.update, "update", "u", false, "update expected output of all tests that are run")
	f.StringVar(&raw.onlyGroup, "only-group", "", "exclude tests outside of the given group")
	f.StringVar(&raw.excludeGroup, "exclude-group", "", "exclude tests from the given group")
	f.IntVarP(&raw.jobs, "jobs", "j", config.DefaultJobs, "number of tests to run concurrently")
	f.DurationVar(&raw.timeout, "timeout", 0, "per-test timeout (0 means none)")
	f.StringVar(&raw.workDir, "workdir", "", "directory commands run in (default current directory)")
	f.StringVar(&raw.outputDir, "output-dir", "", "directory for <name>.output files (default workdir)")
	f.StringVar(&raw.normalize, "normalize", core.NormalizeNone, "output normalization: none|newlines|default")
	f.StringVar(&raw.color, "color", string(report.ColorAuto), "colored output: auto|always|never")
	f.StringVar(&raw.reportPath, "report", "", "write a JSON report to this path")
	f.StringVar(&raw.configPath, "config", "", "defaults file (default <workdir>/"+config.FileName+")")
	f.BoolVar(&raw.rerunFailed, "rerun-failed", false, "run the failed tests of the previous run")
	f.BoolVar(&raw.noHistory, "no-history", false, "do not record this run")
	f.BoolVar(&raw.watch, "watch", false, "re-run tests when files change")
	f.BoolVarP(&raw.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// ParseInvocation parses command-line arguments (without the program name)
// into a canonical Invocation.
func ParseInvocation(args []string) (Invocation, error) {
	var (
		raw      rawFlags
		inv      Invocation
		ran      bool
		help     bytes.Buffer
		parseErr error
	)
	cmd := newCommand(&raw, func(cmd *cobra.Command, positional []string) error {
		ran = true
		explicit := make(map[string]bool)
		cmd.Flags().Visit(func(f *pflag.Flag) { explicit[f.Name] = true })
		inv, parseErr = canonicalize(raw, positional[0], explicit)
		return nil
	})
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(&help)
	cmd.SetErr(&help)

	if err := cmd.Execute(); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if !ran {
		return Invocation{Help: true, HelpText: help.String()}, nil
	}
	if parseErr != nil {
		return Invocation{}, parseErr
	}
	return inv, nil
}

func canonicalize(raw rawFlags, suiteArg string, explicit map[string]bool) (Invocation, error) {
	workDir := raw.workDir
	if strings.TrimSpace(workDir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Invocation{}, &InvocationError{ExitCode: ExitInternalError, Message: fmt.Sprintf("determine working directory: %v", err)}
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Invocation{}, invalidInvocationf("invalid --workdir %q: %v", raw.workDir, err)
	}
	if fi, err := os.Stat(workDir); err != nil || !fi.IsDir() {
		return Invocation{}, invalidInvocationf("--workdir %q is not a directory", workDir)
	}

	suitePath, err := resolveUnderWorkDir(workDir, suiteArg)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		SuitePath:     suitePath,
		OriginalSuite: suiteArg,
		WorkDir:       workDir,
		OutputDir:     workDir,
		TestSubset:    suite.SplitSubset(raw.subset),
		Update:        raw.update,
		OnlyGroup:     raw.onlyGroup,
		ExcludeGroup:  raw.excludeGroup,
		Jobs:          raw.jobs,
		Timeout:       raw.timeout,
		Normalize:     raw.normalize,
		Color:         raw.color,
		RerunFailed:   raw.rerunFailed,
		NoHistory:     raw.noHistory,
		Watch:         raw.watch,
		Verbose:       raw.verbose,
		explicit:      explicit,
	}

	if explicit["output-dir"] {
		if inv.OutputDir, err = resolveUnderWorkDir(workDir, raw.outputDir); err != nil {
			return Invocation{}, err
		}
	}
	if explicit["report"] {
		if inv.ReportPath, err = resolveUnderWorkDir(workDir, raw.reportPath); err != nil {
			return Invocation{}, err
		}
	}
	if explicit["config"] {
		if inv.ConfigPath, err = resolveUnderWorkDir(workDir, raw.configPath); err != nil {
			return Invocation{}, err
		}
		inv.ConfigRequired = true
	} else {
		inv.ConfigPath = filepath.Join(workDir, config.FileName)
	}

	if inv.Jobs < 1 {
		return Invocation{}, invalidInvocationf("--jobs must be >= 1 (got %d)", inv.Jobs)
	}
	if inv.Timeout < 0 {
		return Invocation{}, invalidInvocationf("--timeout must not be negative (got %s)", inv.Timeout)
	}
	if _, err := core.NewNormalizer(inv.Normalize); err != nil {
		return Invocation{}, invalidInvocationf("invalid --normalize: %v", err)
	}
	if _, err := report.ParseColorMode(inv.Color); err != nil {
		return Invocation{}, invalidInvocationf("invalid --color: %v", err)
	}
	if explicit["test-subset"] && len(inv.TestSubset) == 0 {
		return Invocation{}, invalidInvocationf("--test-subset must name at least one test")
	}
	if inv.Watch && inv.Update {
		return Invocation{}, invalidInvocationf("--watch cannot be combined with --update")
	}
	if inv.RerunFailed && len(inv.TestSubset) > 0 {
		return Invocation{}, invalidInvocationf("--rerun-failed cannot be combined with --test-subset")
	}
	return inv, nil
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic exit code from an error.
// Errors that are not invocation errors map to ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
