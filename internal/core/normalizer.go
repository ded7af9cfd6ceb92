package core

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// OutputNormalizer rewrites captured output before it is compared.
type OutputNormalizer interface {
	Normalize(content []byte) []byte
}

// Normalization modes accepted on the command line and in config files.
const (
	NormalizeNone     = "none"
	NormalizeNewlines = "newlines"
	NormalizeDefault  = "default"
)

// NewNormalizer returns the normalizer for mode.
func NewNormalizer(mode string) (OutputNormalizer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", NormalizeNone:
		return NewRawNormalizer(), nil
	case NormalizeNewlines:
		return NewStreamNormalizer(nil), nil
	case NormalizeDefault:
		return NewStreamNormalizer(NewDefaultNormalizer()), nil
	default:
		return nil, fmt.Errorf("unknown normalization %q (expected none|newlines|default)", mode)
	}
}

// DefaultNormalizer masks values that legitimately change between runs of
// the same program:
//   - ISO 8601 and common log timestamps
//   - Unix timestamps
//   - durations such as "took 1.234s"
//   - process ids
//   - memory addresses
type DefaultNormalizer struct {
	patterns []normPattern
}

type normPattern struct {
	regex       *regexp.Regexp
	replacement []byte
}

var defaultPatterns = []normPattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?`), []byte("<TIMESTAMP>")},
	{regexp.MustCompile(`\d{4}[-/]\d{2}[-/]\d{2}\s+\d{2}:\d{2}:\d{2}(\.\d+)?`), []byte("<TIMESTAMP>")},
	{regexp.MustCompile(`\b1[0-9]{9,12}\b`), []byte("<UNIX_TS>")},
	{regexp.MustCompile(`\b\d+(\.\d+)?\s*(ms|s|seconds?|minutes?|hours?)\b`), []byte("<DURATION>")},
	{regexp.MustCompile(`\b[Pp][Ii][Dd][:\s]*\d+\b`), []byte("pid <PID>")},
	{regexp.MustCompile(`0x[0-9a-fA-F]{8,16}`), []byte("<ADDR>")},
}

// NewDefaultNormalizer creates a normalizer with the built-in patterns.
func NewDefaultNormalizer() *DefaultNormalizer {
	return &DefaultNormalizer{patterns: defaultPatterns}
}

// Normalize replaces every match with its placeholder.
func (n *DefaultNormalizer) Normalize(content []byte) []byte {
	for _, p := range n.patterns {
		content = p.regex.ReplaceAll(content, p.replacement)
	}
	return content
}

// RawNormalizer compares output byte for byte.
type RawNormalizer struct{}

func NewRawNormalizer() *RawNormalizer { return &RawNormalizer{} }

func (RawNormalizer) Normalize(content []byte) []byte { return content }

// StreamNormalizer converts CRLF line endings to LF, then applies Inner.
type StreamNormalizer struct {
	Inner OutputNormalizer
}

func NewStreamNormalizer(inner OutputNormalizer) *StreamNormalizer {
	return &StreamNormalizer{Inner: inner}
}

func (n *StreamNormalizer) Normalize(content []byte) []byte {
	out := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if n.Inner != nil {
		out = n.Inner.Normalize(out)
	}
	return out
}
