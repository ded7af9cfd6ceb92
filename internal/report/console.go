package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"minisciath/internal/core"
)

// ColorMode controls styling of console output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color value.
func ParseColorMode(raw string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("invalid color mode %q (expected auto|always|never)", raw)
	}
}

const (
	infoLabel    = "[MiniSciATH]"
	failureLabel = "FAILURE"
)

// Hint carries what the console needs to print re-run commands.
type Hint struct {
	// Program is how the runner was invoked, e.g. os.Args[0].
	Program string

	// Suite is the test file argument as the user gave it.
	Suite string

	// Args are flags placed after Suite, such as --workdir, so the command
	// resolves the same paths when run from another directory.
	Args []string
}

// Console writes the human-readable report of a run.
//
// Every status line starts with the [MiniSciATH] badge. With colour enabled
// the badge is drawn on blue and FAILURE on red.
type Console struct {
	w       io.Writer
	info    string
	failure string
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer, mode ColorMode) *Console {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}
	white := lipgloss.Color("7")
	return &Console{
		w:       w,
		info:    r.NewStyle().Background(lipgloss.Color("12")).Foreground(white).Render(infoLabel),
		failure: r.NewStyle().Background(lipgloss.Color("1")).Foreground(white).Render(failureLabel),
	}
}

// Info prints a badge-prefixed line.
func (c *Console) Info(parts ...string) {
	fmt.Fprintln(c.w, c.info+" "+strings.Join(parts, " "))
}

// Failure prints a badge-prefixed line starting with the FAILURE label.
func (c *Console) Failure(parts ...string) {
	c.Info(append([]string{c.failure}, parts...)...)
}

// Command prints an indented command line.
func (c *Console) Command(cmd string) {
	fmt.Fprintln(c.w, "  ", cmd)
}

// Result prints the block for one finished test.
func (c *Console) Result(r core.Result) {
	c.Info("Running", r.Test.Name)
	c.Command(r.Test.Command)

	switch r.Outcome {
	case core.OutcomePassed:
		c.Info("Success.")
	case core.OutcomeUpdated:
		c.Info("Expected output updated.")
	case core.OutcomeMissing:
		c.Info(c.failure, "Expected file", r.Test.Expected, "missing")
	case core.OutcomeErrored:
		c.Info(c.failure, "Command error:", r.Reason)
	case core.OutcomeFailed:
		c.Info(c.failure + ". Output differs from expected:")
		io.WriteString(c.w, r.Diff)
		if r.Diff != "" && !strings.HasSuffix(r.Diff, "\n") {
			fmt.Fprintln(c.w)
		}
	}
	fmt.Fprintln(c.w)
}

// Summary prints the closing lines of a run, including the commands that
// regenerate missing files and re-run failures.
func (c *Console) Summary(s Summary, h Hint) {
	counts := func(n int) string {
		return fmt.Sprintf("(%d of %d total tests)", n, s.Total)
	}
	group := groupInfo(s)

	if !s.OK() {
		c.Failure(nonEmpty(group, counts(s.Failures()))...)
		if len(s.Missing) > 0 {
			c.Info("To generate missing expected files from current output")
			c.Command(rerunCommand(h, s.Missing, true))
		}
		if len(s.Rerun) > 0 {
			c.Info("To re-run with only failed tests")
			c.Command(rerunCommand(h, s.Rerun, false))
		}
		return
	}
	if !s.Update {
		c.Info(nonEmpty("SUCCESS", group, counts(s.Selected))...)
	}
}

func groupInfo(s Summary) string {
	var parts []string
	if s.OnlyGroup != "" {
		parts = append(parts, fmt.Sprintf("(only group %s)", s.OnlyGroup))
	}
	if s.ExcludeGroup != "" {
		parts = append(parts, fmt.Sprintf("(excluding group %s)", s.ExcludeGroup))
	}
	return strings.Join(parts, " ")
}

func rerunCommand(h Hint, names []string, update bool) string {
	program := h.Program
	if program == "" {
		program = "minisciath"
	}
	words := []string{program, h.Suite}
	words = append(words, h.Args...)
	words = append(words, "-t", strings.Join(names, ","))
	if update {
		words = append(words, "--update")
	}
	for i, w := range words {
		words[i] = shellQuote(w)
	}
	return strings.Join(words, " ")
}

// shellQuote single-quotes w when a POSIX shell would split or expand it.
func shellQuote(w string) string {
	if w != "" && !strings.ContainsAny(w, " \t\n'\"\\$`&;|<>()*?[]{}~#!") {
		return w
	}
	return "'" + strings.ReplaceAll(w, "'", `'\''`) + "'"
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
