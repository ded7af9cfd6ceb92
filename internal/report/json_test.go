package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minisciath/internal/core"
)

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "run.json")

	failed := result("b", core.OutcomeFailed)
	failed.Diff = "-x\n+y\n"
	failed.ExitCode = 1
	failed.Duration = 1500 * time.Millisecond
	results := []core.Result{result("a", core.OutcomePassed), failed}
	s := Summarize(3, results, false, "", "")

	require.NoError(t, WriteJSON(path, NewDocument("/work/tests.yaml", s, results)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Document
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "/work/tests.yaml", got.Suite)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Selected)
	assert.Equal(t, 1, got.Failures)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "a", got.Results[0].Name)
	assert.Equal(t, "failed", got.Results[1].Outcome)
	assert.Equal(t, int64(1500), got.Results[1].DurationMS)
	assert.Equal(t, "-x\n+y\n", got.Results[1].Diff)
}
