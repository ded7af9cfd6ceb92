// Package history persists a record of each run so later invocations can
// re-run what failed.
//
// Records live under <workdir>/.minisciath/runs/<run-id>/run.json.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"minisciath/internal/core"
)

type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Run is the persisted metadata of one invocation.
type Run struct {
	RunID     string    `json:"run_id"`
	Suite     string    `json:"suite"`
	StartTime time.Time `json:"start_time"`
	Update    bool      `json:"update"`
	Selected  []string  `json:"selected"`
	Passed    []string  `json:"passed"`
	Failed    []string  `json:"failed"`
	Missing   []string  `json:"missing"`
	Errored   []string  `json:"errored"`
	Status    Status    `json:"status"`
}

// NewRunID returns a fresh random run id.
func NewRunID() string {
	return uuid.NewString()
}

// Failures lists the tests that should be re-run: failed, missing, then
// errored, each in run order.
func (r Run) Failures() []string {
	out := make([]string, 0, len(r.Failed)+len(r.Missing)+len(r.Errored))
	out = append(out, r.Failed...)
	out = append(out, r.Missing...)
	return append(out, r.Errored...)
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	} else if _, err := uuid.Parse(r.RunID); err != nil {
		errs = append(errs, fmt.Errorf("run_id %q is not a uuid", r.RunID))
	}
	if strings.TrimSpace(r.Suite) == "" {
		errs = append(errs, errors.New("suite is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case StatusPassed, StatusFailed:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Status == StatusPassed && len(r.Failures()) > 0 {
		errs = append(errs, errors.New("status passed with recorded failures"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// normalize replaces nil slices so they encode as [] rather than null.
func (r *Run) normalize() {
	for _, s := range []*[]string{&r.Selected, &r.Passed, &r.Failed, &r.Missing, &r.Errored} {
		if *s == nil {
			*s = []string{}
		}
	}
}

// NewRun builds the record of a finished run from its results.
func NewRun(suite string, start time.Time, update bool, results []core.Result) Run {
	r := Run{
		RunID:     NewRunID(),
		Suite:     suite,
		StartTime: start.UTC(),
		Update:    update,
		Status:    StatusPassed,
	}
	for _, res := range results {
		name := res.Test.Name
		r.Selected = append(r.Selected, name)
		switch res.Outcome {
		case core.OutcomePassed, core.OutcomeUpdated:
			r.Passed = append(r.Passed, name)
		case core.OutcomeFailed:
			r.Failed = append(r.Failed, name)
		case core.OutcomeMissing:
			r.Missing = append(r.Missing, name)
		case core.OutcomeErrored:
			r.Errored = append(r.Errored, name)
		}
	}
	if len(r.Failures()) > 0 {
		r.Status = StatusFailed
	}
	r.normalize()
	return r
}
