// Package suite loads and selects the regression tests declared in a test file.
//
// A test file is a YAML document whose top level is a sequence of mappings:
//
//	- name: hello
//	  command: ./hello --greeting
//	  expected: expected/hello.txt
//	  group: smoke
//
// Every value is a scalar. Paths are interpreted relative to the directory
// the runner executes commands in.
package suite

import (
	"regexp"
	"time"
)

// Test is a single regression test: a command whose combined output must
// reproduce the contents of an expected file.
type Test struct {
	// Name identifies the test on the command line and names its output file.
	Name string `json:"name"`

	// Command is interpreted by the shell exactly as written.
	Command string `json:"command"`

	// Expected is the path of the golden output file.
	Expected string `json:"expected"`

	// Group is an optional label used by group filters.
	Group string `json:"group,omitempty"`

	// Timeout overrides the run-wide timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Line is the line of the entry in the test file.
	Line int `json:"-"`
}

// OutputName is the file name a normal run writes the test's output to.
func (t Test) OutputName() string {
	return t.Name + ".output"
}

var validName = regexp.MustCompile(`^\w+$`)

// ValidName reports whether name only uses letters, digits and underscores.
func ValidName(name string) bool {
	return validName.MatchString(name)
}
