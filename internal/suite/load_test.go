package suite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSuite = `# regression tests
- name: hello
  command: echo hello
  expected: expected/hello.txt

- name: slow_one
  command: ./slow --flag "a b"   # trailing comment
  expected: expected/slow.txt
  group: slow
  timeout: 30s
`

func TestParse_ValidSuite(t *testing.T) {
	tests, err := Parse("tests.yaml", []byte(validSuite))
	require.NoError(t, err)
	require.Len(t, tests, 2)

	assert.Equal(t, Test{Name: "hello", Command: "echo hello", Expected: "expected/hello.txt", Line: 2}, tests[0])
	assert.Equal(t, "slow_one", tests[1].Name)
	assert.Equal(t, `./slow --flag "a b"`, tests[1].Command)
	assert.Equal(t, "slow", tests[1].Group)
	assert.Equal(t, 30*time.Second, tests[1].Timeout)
	assert.Equal(t, "slow_one.output", tests[1].OutputName())
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "empty file",
			input:   "",
			wantMsg: "no tests defined",
		},
		{
			name:    "top level mapping",
			input:   "name: a\ncommand: b\n",
			wantMsg: "incorrectly formatted input file (must have a top level sequence)",
		},
		{
			name:    "entry not a mapping",
			input:   "- just text\n",
			wantMsg: "incorrectly formatted test entry (must be a mapping)",
		},
		{
			name:    "missing expected",
			input:   "- name: a\n  command: echo\n",
			wantMsg: "each test entry must define an expected file",
		},
		{
			name:    "empty expected",
			input:   "- name: a\n  command: echo\n  expected:\n",
			wantMsg: "each test entry must define an expected file",
		},
		{
			name:    "missing command",
			input:   "- name: a\n  expected: a.txt\n",
			wantMsg: "each test entry must specify a command",
		},
		{
			name:    "missing name",
			input:   "- command: echo\n  expected: a.txt\n",
			wantMsg: "each test entry must specify a name",
		},
		{
			name:    "illegal name",
			input:   "- name: bad-name\n  command: echo\n  expected: a.txt\n",
			wantMsg: "illegal test name bad-name - use numbers, letters, and underscores",
		},
		{
			name:    "duplicate name",
			input:   "- name: a\n  command: echo\n  expected: a.txt\n- name: a\n  command: echo\n  expected: b.txt\n",
			wantMsg: "duplicate test name a not allowed",
		},
		{
			name:    "empty group",
			input:   "- name: a\n  command: echo\n  expected: a.txt\n  group:\n",
			wantMsg: "empty group name for test a not allowed",
		},
		{
			name:    "unknown key",
			input:   "- name: a\n  command: echo\n  expected: a.txt\n  owner: me\n",
			wantMsg: "unknown key: owner",
		},
		{
			name:    "nested value",
			input:   "- name: a\n  command:\n    - echo\n  expected: a.txt\n",
			wantMsg: "value of command must be a scalar",
		},
		{
			name:    "bad timeout",
			input:   "- name: a\n  command: echo\n  expected: a.txt\n  timeout: soon\n",
			wantMsg: "invalid timeout for test a",
		},
		{
			name:    "second document",
			input:   "- name: a\n  command: echo\n  expected: a.txt\n---\n- name: b\n  command: echo\n  expected: b.txt\n",
			wantMsg: "test file must contain a single YAML document",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("tests.yaml", []byte(tc.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestParse_ErrorCarriesLine(t *testing.T) {
	input := "- name: a\n  command: echo\n  expected: a.txt\n- name: b\n  expected: b.txt\n"
	_, err := Parse("tests.yaml", []byte(input))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Line)
	assert.Equal(t, "tests.yaml:4: each test entry must specify a command", pe.Error())
}

func TestParse_SyntaxErrorCarriesLine(t *testing.T) {
	input := "- name: a\n  command: echo\n  expected: a.txt\n\tgroup: slow\n"
	_, err := Parse("tests.yaml", []byte(input))

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, 4, pe.Line)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.NotContains(t, pe.Msg, "line 4")
	assert.Contains(t, pe.Error(), "tests.yaml:4: ")
}

func TestParse_SecondDocumentReportsItsLine(t *testing.T) {
	input := "- name: a\n  command: echo\n  expected: a.txt\n---\n- name: b\n  command: echo\n  expected: b.txt\n"
	_, err := Parse("tests.yaml", []byte(input))

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Greater(t, pe.Line, 3)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validSuite), 0o644))

	tests, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tests, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
