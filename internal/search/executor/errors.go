package executor

import (
	"errors"
	"fmt"
)

// ExecutionError wraps a failure encountered while executing a query,
// typically a data-access error from the Taiga API. Parse-time problems
// never surface as ExecutionError; they are rejected before any fetch.
type ExecutionError struct {
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err (or any error in its chain) is an
// ExecutionError.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}
