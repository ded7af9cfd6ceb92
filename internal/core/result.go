package core

import (
	"time"

	"minisciath/internal/suite"
)

// Outcome classifies a finished test.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeMissing Outcome = "missing"
	OutcomeErrored Outcome = "errored"
	OutcomeUpdated Outcome = "updated"
)

// IsFailure reports whether the outcome fails the run.
func (o Outcome) IsFailure() bool {
	switch o {
	case OutcomeFailed, OutcomeMissing, OutcomeErrored:
		return true
	default:
		return false
	}
}

// Result is the outcome of running one test.
type Result struct {
	Test    suite.Test
	Outcome Outcome

	// ExitCode is informational; it never decides the outcome.
	ExitCode int

	// OutputPath is where the captured output was written, if anywhere.
	OutputPath string

	// ExpectedPath is the resolved expected file.
	ExpectedPath string

	// Diff is set for OutcomeFailed.
	Diff string

	// Reason is set for OutcomeErrored.
	Reason string

	Duration time.Duration
}
