package core

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minisciath/internal/suite"
)

type fakeRunner struct {
	delay map[string]time.Duration
	fail  map[string]error

	mu      sync.Mutex
	running int
	peak    int
}

func (f *fakeRunner) Run(ctx context.Context, t suite.Test) (Result, error) {
	f.mu.Lock()
	f.running++
	if f.running > f.peak {
		f.peak = f.running
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if d := f.delay[t.Name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	runtime.Gosched()
	if err := f.fail[t.Name]; err != nil {
		return Result{}, err
	}
	return Result{Test: t, Outcome: OutcomePassed}, nil
}

func testsNamed(names ...string) []suite.Test {
	out := make([]suite.Test, len(names))
	for i, n := range names {
		out[i] = suite.Test{Name: n, Command: "true", Expected: n + ".txt"}
	}
	return out
}

func TestScheduler_EmitsInInputOrder(t *testing.T) {
	runner := &fakeRunner{delay: map[string]time.Duration{
		"a": 60 * time.Millisecond,
		"b": 5 * time.Millisecond,
		"c": 30 * time.Millisecond,
	}}
	s := NewScheduler(runner, 4)

	var emitted []string
	results, err := s.Run(context.Background(), testsNamed("a", "b", "c", "d"), func(r Result) {
		emitted = append(emitted, r.Test.Name)
	})
	require.NoError(t, err)

	want := []string{"a", "b", "c", "d"}
	if diff := cmp.Diff(want, emitted); diff != "" {
		t.Errorf("emit order mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, want[i], r.Test.Name)
	}
	assert.Greater(t, runner.peak, 1, "tests did not overlap")
}

func TestScheduler_RespectsJobLimit(t *testing.T) {
	runner := &fakeRunner{delay: map[string]time.Duration{
		"a": 20 * time.Millisecond, "b": 20 * time.Millisecond,
		"c": 20 * time.Millisecond, "d": 20 * time.Millisecond,
	}}
	s := NewScheduler(runner, 2)

	_, err := s.Run(context.Background(), testsNamed("a", "b", "c", "d"), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.peak, 2)
}

func TestScheduler_SerialWhenJobsUnset(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, 0)

	_, err := s.Run(context.Background(), testsNamed("a", "b", "c"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.peak)
}

func TestScheduler_ErrorCancelsRun(t *testing.T) {
	boom := errors.New("disk full")
	runner := &fakeRunner{
		fail:  map[string]error{"a": boom},
		delay: map[string]time.Duration{"b": 5 * time.Second},
	}
	s := NewScheduler(runner, 2)

	start := time.Now()
	_, err := s.Run(context.Background(), testsNamed("a", "b"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOrderedEmitter(t *testing.T) {
	var got []int
	o := newOrderedEmitter(3, func(i int, _ Result) { got = append(got, i) })

	o.deliver(2, Result{})
	assert.Empty(t, got)
	o.deliver(0, Result{})
	assert.Equal(t, []int{0}, got)
	o.deliver(1, Result{})
	assert.Equal(t, []int{0, 1, 2}, got)
}
