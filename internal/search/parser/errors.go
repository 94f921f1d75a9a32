package parser

import (
	"errors"
	"fmt"
)

// SyntaxError describes a query that failed to parse or validate. It
// carries the offending substring and its byte position in the original
// query text. A SyntaxError is always raised before any network access
// happens; a query that parses cleanly cannot fail syntactically later.
type SyntaxError struct {
	// Message is the human-readable description of the problem.
	Message string
	// Fragment is the offending substring of the query text.
	Fragment string
	// Position is the byte offset of the fragment in the query text.
	Position int
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("syntax error: %s", e.Message)
	}
	return fmt.Sprintf("syntax error at position %d: %s: %q", e.Position, e.Message, e.Fragment)
}

// IsSyntaxError reports whether err (or any error in its chain) is a
// SyntaxError.
func IsSyntaxError(err error) bool {
	var syntaxErr *SyntaxError
	return errors.As(err, &syntaxErr)
}

func syntaxErrorf(fragment string, position int, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Message:  fmt.Sprintf(format, args...),
		Fragment: fragment,
		Position: position,
	}
}
