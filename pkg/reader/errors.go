package reader

import "fmt"

// ParseError reports malformed source with a 1-based location.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("reader: %s", e.Message)
	}
	return fmt.Sprintf("reader: %d:%d: %s", e.Line, e.Column, e.Message)
}

// offsetError carries a byte offset until the reader can turn it into a
// line and column.
type offsetError struct {
	offset  int
	message string
}

func (e *offsetError) Error() string { return e.message }

func errAt(offset int, format string, args ...any) error {
	return &offsetError{offset: offset, message: fmt.Sprintf(format, args...)}
}
