package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"minisciath/internal/core"
)

// Document is the machine-readable report of a run.
//
// Entries follow run order. Paths are written as resolved by the runner.
type Document struct {
	Suite    string  `json:"suite"`
	Update   bool    `json:"update"`
	Total    int     `json:"total"`
	Selected int     `json:"selected"`
	Failures int     `json:"failures"`
	Results  []Entry `json:"results"`
}

// Entry is one test in a Document.
type Entry struct {
	Name       string `json:"name"`
	Group      string `json:"group,omitempty"`
	Command    string `json:"command"`
	Expected   string `json:"expected"`
	Output     string `json:"output,omitempty"`
	Outcome    string `json:"outcome"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
	Diff       string `json:"diff,omitempty"`
}

// NewDocument builds the report for results.
func NewDocument(suitePath string, s Summary, results []core.Result) Document {
	doc := Document{
		Suite:    suitePath,
		Update:   s.Update,
		Total:    s.Total,
		Selected: s.Selected,
		Failures: s.Failures(),
		Results:  make([]Entry, 0, len(results)),
	}
	for _, r := range results {
		doc.Results = append(doc.Results, Entry{
			Name:       r.Test.Name,
			Group:      r.Test.Group,
			Command:    r.Test.Command,
			Expected:   r.ExpectedPath,
			Output:     r.OutputPath,
			Outcome:    string(r.Outcome),
			ExitCode:   r.ExitCode,
			DurationMS: r.Duration.Milliseconds(),
			Reason:     r.Reason,
			Diff:       r.Diff,
		})
	}
	return doc
}

// Marshal returns the indented JSON encoding with a trailing newline.
func (d Document) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// WriteJSON atomically replaces path with the encoded document.
func WriteJSON(path string, d Document) error {
	b, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
