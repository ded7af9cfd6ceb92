package core

import (
	"bytes"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffContext is the number of unchanged lines shown around each change.
const DiffContext = 3

// Verdict is the result of comparing captured output with the expected file.
type Verdict struct {
	Match bool

	// Diff is a unified diff from expected to actual, empty on a match.
	Diff string
}

// Verifier compares captured output with golden files.
type Verifier struct {
	Normalizer OutputNormalizer
}

// NewVerifier creates a Verifier using n, or byte comparison when n is nil.
func NewVerifier(n OutputNormalizer) *Verifier {
	if n == nil {
		n = NewRawNormalizer()
	}
	return &Verifier{Normalizer: n}
}

// Compare checks actual against expected. The names label the diff headers.
func (v *Verifier) Compare(expected, actual []byte, expectedName, actualName string) Verdict {
	exp := v.Normalizer.Normalize(expected)
	act := v.Normalizer.Normalize(actual)
	if bytes.Equal(exp, act) {
		return Verdict{Match: true}
	}

	diff := difflib.UnifiedDiff{
		A:        diffLines(exp),
		B:        diffLines(act),
		FromFile: expectedName,
		ToFile:   actualName,
		Context:  DiffContext,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		text = "diff unavailable: " + err.Error() + "\n"
	}
	return Verdict{Match: false, Diff: text}
}

// noNewlineMarker follows a final line that lacks a newline, as diff(1) does.
const noNewlineMarker = "\\ No newline at end of file\n"

// diffLines splits b into newline-terminated lines. An unterminated final
// line is closed and followed by noNewlineMarker, so it never compares equal
// to the same text with a newline.
func diffLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(b), "\n")
	last := len(lines) - 1
	if lines[last] == "" {
		return lines[:last]
	}
	lines[last] += "\n" + noNewlineMarker
	return lines
}
