package suite

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed        = errors.New("malformed test file")
	ErrUnknownSelection = errors.New("unrecognized test selected")
)

// ParseError reports a problem in a test file, with the line it was found on.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

func parseErrorf(path string, line int, format string, args ...any) error {
	return &ParseError{Path: path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// SelectionError reports a selected test name that the file does not define.
type SelectionError struct {
	Name string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("unrecognized test %s selected", e.Name)
}

func (e *SelectionError) Is(target error) bool { return target == ErrUnknownSelection }
