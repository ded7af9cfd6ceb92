//go:build !windows

package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := NewExecutor(t.TempDir())
	e.Grace = 200 * time.Millisecond
	e.Logger = zaptest.NewLogger(t)
	return e
}

func TestExecute_MergesStdoutAndStderrInOrder(t *testing.T) {
	e := newTestExecutor(t)

	res, err := e.Execute(context.Background(), "echo one; echo two 1>&2; echo three", 0)
	require.NoError(t, err)

	assert.Equal(t, "one\ntwo\nthree\n", string(res.Output))
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestExecute_ReportsExitCode(t *testing.T) {
	e := newTestExecutor(t)

	res, err := e.Execute(context.Background(), "echo partial; exit 3", 0)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "partial\n", string(res.Output))
}

func TestExecute_RunsInWorkingDir(t *testing.T) {
	e := newTestExecutor(t)

	res, err := e.Execute(context.Background(), "pwd -P", 0)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(e.WorkingDir)
	require.NoError(t, err)
	assert.Equal(t, want+"\n", string(res.Output))
}

func TestExecute_InheritsEnvironment(t *testing.T) {
	t.Setenv("MINISCIATH_PROBE", "visible")
	e := newTestExecutor(t)

	res, err := e.Execute(context.Background(), `echo "probe=$MINISCIATH_PROBE"`, 0)
	require.NoError(t, err)
	assert.Equal(t, "probe=visible\n", string(res.Output))
}

func TestExecute_TimeoutStopsProcessGroup(t *testing.T) {
	e := newTestExecutor(t)

	start := time.Now()
	res, err := e.Execute(context.Background(), "echo begun; sleep 30 & sleep 30", 200*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, "begun\n", string(res.Output))
	assert.Less(t, time.Since(start), 3*time.Second, "background child kept the command alive")
}

func TestExecute_CancelledContext(t *testing.T) {
	e := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := e.Execute(ctx, "sleep 30", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecute_StartFailure(t *testing.T) {
	e := newTestExecutor(t)
	e.WorkingDir = filepath.Join(e.WorkingDir, "does-not-exist")

	_, err := e.Execute(context.Background(), "echo hi", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStart)
}

func TestExecute_EmptyCommand(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.Execute(context.Background(), "   ", 0)
	require.Error(t, err)
}
