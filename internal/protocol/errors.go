package protocol

import "fmt"

// MalformedLineError reports a line that violates the protocol's
// tokenization or row-shape rules: unbalanced quotes, a row that is too
// short for its tag, or a field that fails to parse as its expected type.
// Malformed server data is a contract violation and is never coerced.
type MalformedLineError struct {
	Line   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("malformed line: %s", e.Reason)
	}
	return fmt.Sprintf("malformed line %q: %s", e.Line, e.Reason)
}

func malformed(line, format string, args ...any) *MalformedLineError {
	return &MalformedLineError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
