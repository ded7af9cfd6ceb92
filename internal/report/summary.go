// Package report turns test results into console output and report files.
package report

import (
	"minisciath/internal/core"
)

// Summary aggregates the results of one run.
type Summary struct {
	// Total is the number of tests defined in the file, selected or not.
	Total int

	// Selected is the number of tests that ran.
	Selected int

	Update       bool
	OnlyGroup    string
	ExcludeGroup string

	// Names per outcome, in run order.
	Passed  []string
	Updated []string
	Failed  []string
	Missing []string
	Errored []string

	// Rerun lists failed and errored tests in run order.
	Rerun []string
}

// Summarize builds the Summary for results. total is the size of the suite.
func Summarize(total int, results []core.Result, update bool, onlyGroup, excludeGroup string) Summary {
	s := Summary{
		Total:        total,
		Selected:     len(results),
		Update:       update,
		OnlyGroup:    onlyGroup,
		ExcludeGroup: excludeGroup,
	}
	for _, r := range results {
		name := r.Test.Name
		switch r.Outcome {
		case core.OutcomePassed:
			s.Passed = append(s.Passed, name)
		case core.OutcomeUpdated:
			s.Updated = append(s.Updated, name)
		case core.OutcomeFailed:
			s.Failed = append(s.Failed, name)
			s.Rerun = append(s.Rerun, name)
		case core.OutcomeMissing:
			s.Missing = append(s.Missing, name)
		case core.OutcomeErrored:
			s.Errored = append(s.Errored, name)
			s.Rerun = append(s.Rerun, name)
		}
	}
	return s
}

// Failures is the number of tests that failed the run.
func (s Summary) Failures() int {
	return len(s.Failed) + len(s.Missing) + len(s.Errored)
}

// OK reports whether the run had no failures.
func (s Summary) OK() bool {
	return s.Failures() == 0
}

// FailedNames lists every failing test: failed, missing, then errored.
func (s Summary) FailedNames() []string {
	out := make([]string, 0, s.Failures())
	out = append(out, s.Failed...)
	out = append(out, s.Missing...)
	return append(out, s.Errored...)
}
