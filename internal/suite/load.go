package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	keyName     = "name"
	keyCommand  = "command"
	keyExpected = "expected"
	keyGroup    = "group"
	keyTimeout  = "timeout"
)

var knownKeys = map[string]bool{
	keyName:     true,
	keyCommand:  true,
	keyExpected: true,
	keyGroup:    true,
	keyTimeout:  true,
}

// LoadFile reads and validates the test file at path.
//
// The returned tests keep the order of the file. Validation stops at the
// first offending entry.
func LoadFile(path string) ([]Test, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test file: %w", err)
	}
	return Parse(path, b)
}

// Parse validates the YAML test definitions in b. path is only used in errors.
func Parse(path string, b []byte) ([]Test, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, parseErrorf(path, 1, "no tests defined")
		}
		return nil, syntaxError(path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, parseErrorf(path, 1, "no tests defined")
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, syntaxError(path, err)
		}
		line := extra.Line
		if line == 0 && len(extra.Content) > 0 {
			line = extra.Content[0].Line
		}
		return nil, parseErrorf(path, line, "test file must contain a single YAML document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, parseErrorf(path, root.Line, "incorrectly formatted input file (must have a top level sequence)")
	}
	if len(root.Content) == 0 {
		return nil, parseErrorf(path, root.Line, "no tests defined")
	}

	tests := make([]Test, 0, len(root.Content))
	seen := make(map[string]bool, len(root.Content))
	for _, item := range root.Content {
		entry, err := decodeEntry(path, item)
		if err != nil {
			return nil, err
		}
		t, err := buildTest(path, item.Line, entry)
		if err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, parseErrorf(path, item.Line, "duplicate test name %s not allowed", t.Name)
		}
		seen[t.Name] = true
		tests = append(tests, t)
	}
	return tests, nil
}

var yamlLine = regexp.MustCompile(`^yaml: line (\d+): `)

// syntaxError moves the line number yaml reports in its message into the
// ParseError.
func syntaxError(path string, err error) error {
	msg := err.Error()
	m := yamlLine.FindStringSubmatch(msg)
	if m == nil {
		return &ParseError{Path: path, Msg: msg}
	}
	line, _ := strconv.Atoi(m[1])
	return &ParseError{Path: path, Line: line, Msg: strings.TrimPrefix(msg, m[0])}
}

// field is a scalar value together with the line it appeared on.
type field struct {
	value string
	line  int
}

func decodeEntry(path string, item *yaml.Node) (map[string]field, error) {
	if item.Kind == yaml.AliasNode && item.Alias != nil {
		item = item.Alias
	}
	if item.Kind != yaml.MappingNode {
		return nil, parseErrorf(path, item.Line, "incorrectly formatted test entry (must be a mapping)")
	}
	entry := make(map[string]field, len(item.Content)/2)
	for i := 0; i+1 < len(item.Content); i += 2 {
		k, v := item.Content[i], item.Content[i+1]
		key := k.Value
		if !knownKeys[key] {
			return nil, parseErrorf(path, k.Line, "unknown key: %s", key)
		}
		if _, dup := entry[key]; dup {
			return nil, parseErrorf(path, k.Line, "duplicate key: %s", key)
		}
		if v.Kind == yaml.AliasNode && v.Alias != nil {
			v = v.Alias
		}
		if v.Kind != yaml.ScalarNode {
			return nil, parseErrorf(path, v.Line, "value of %s must be a scalar", key)
		}
		entry[key] = field{value: scalarValue(v), line: k.Line}
	}
	return entry, nil
}

func scalarValue(n *yaml.Node) string {
	if n.ShortTag() == "!!null" {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

func buildTest(path string, line int, entry map[string]field) (Test, error) {
	expected, ok := entry[keyExpected]
	if !ok || expected.value == "" {
		return Test{}, parseErrorf(path, line, "each test entry must define an expected file")
	}
	command, ok := entry[keyCommand]
	if !ok || command.value == "" {
		return Test{}, parseErrorf(path, line, "each test entry must specify a command")
	}
	name, ok := entry[keyName]
	if !ok {
		return Test{}, parseErrorf(path, line, "each test entry must specify a name")
	}
	if !ValidName(name.value) {
		return Test{}, parseErrorf(path, name.line, "illegal test name %s - use numbers, letters, and underscores", name.value)
	}

	t := Test{
		Name:     name.value,
		Command:  command.value,
		Expected: expected.value,
		Line:     line,
	}
	if group, ok := entry[keyGroup]; ok {
		if group.value == "" {
			return Test{}, parseErrorf(path, group.line, "empty group name for test %s not allowed", t.Name)
		}
		t.Group = group.value
	}
	if raw, ok := entry[keyTimeout]; ok && raw.value != "" {
		d, err := time.ParseDuration(raw.value)
		if err != nil {
			return Test{}, parseErrorf(path, raw.line, "invalid timeout for test %s: %v", t.Name, err)
		}
		if d < 0 {
			return Test{}, parseErrorf(path, raw.line, "negative timeout for test %s not allowed", t.Name)
		}
		t.Timeout = d
	}
	return t, nil
}
