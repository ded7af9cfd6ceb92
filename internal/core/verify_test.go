package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifier_Match(t *testing.T) {
	v := NewVerifier(nil)
	got := v.Compare([]byte("a\nb\n"), []byte("a\nb\n"), "exp.txt", "t.output")
	assert.True(t, got.Match)
	assert.Empty(t, got.Diff)
}

func TestVerifier_UnifiedDiff(t *testing.T) {
	v := NewVerifier(nil)
	got := v.Compare([]byte("a\nb\nc\n"), []byte("a\nB\nc\n"), "exp.txt", "t.output")

	assert.False(t, got.Match)
	want := "--- exp.txt\n" +
		"+++ t.output\n" +
		"@@ -1,3 +1,3 @@\n" +
		" a\n" +
		"-b\n" +
		"+B\n" +
		" c\n"
	assert.Equal(t, want, got.Diff)
}

func TestVerifier_TrailingNewlineCounts(t *testing.T) {
	v := NewVerifier(nil)
	got := v.Compare([]byte("x\na\n"), []byte("x\na"), "exp.txt", "t.output")
	assert.False(t, got.Match)
	want := "--- exp.txt\n" +
		"+++ t.output\n" +
		"@@ -1,2 +1,2 @@\n" +
		" x\n" +
		"-a\n" +
		"+a\n" +
		"\\ No newline at end of file\n"
	assert.Equal(t, want, got.Diff)
}

func TestVerifier_SingleLineHunkHeader(t *testing.T) {
	v := NewVerifier(nil)
	got := v.Compare([]byte("gamma\n"), []byte("beta\n"), "expected/b.txt", "b.output")
	assert.Equal(t, "--- expected/b.txt\n+++ b.output\n@@ -1 +1 @@\n-gamma\n+beta\n", got.Diff)
}

func TestVerifier_EmptyExpected(t *testing.T) {
	v := NewVerifier(nil)
	got := v.Compare(nil, []byte("new\n"), "exp.txt", "t.output")
	assert.Equal(t, "--- exp.txt\n+++ t.output\n@@ -0,0 +1 @@\n+new\n", got.Diff)
}

func TestVerifier_NormalizesBothSides(t *testing.T) {
	v := NewVerifier(NewStreamNormalizer(NewDefaultNormalizer()))
	got := v.Compare(
		[]byte("done at 2024-01-01T00:00:00Z\r\n"),
		[]byte("done at 2025-06-30T12:34:56Z\n"),
		"exp.txt", "t.output",
	)
	assert.True(t, got.Match)
}
