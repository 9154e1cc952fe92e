package utils

import "fmt"

// InvalidArgumentError represents a caller-supplied parameter outside its
// documented domain (negative counts, out-of-range confidence, empty
// selection, conflicting force flags, unknown band).
type InvalidArgumentError struct {
	Message string
}

// Error returns the error message string.
func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// NewInvalidArgumentError creates a new InvalidArgumentError with a specific message.
func NewInvalidArgumentError(message string) error {
	return &InvalidArgumentError{
		Message: message,
	}
}

// NewInvalidArgumentErrorf creates a new InvalidArgumentError with a formatted message.
func NewInvalidArgumentErrorf(format string, args ...interface{}) error {
	return &InvalidArgumentError{
		Message: fmt.Sprintf(format, args...),
	}
}

// ConsistencyError represents a selection or table violating a structural
// precondition (indices outside the table, mixed bin shapes in a dataset).
type ConsistencyError struct {
	Message string
}

// Error returns the error message string.
func (e *ConsistencyError) Error() string {
	return e.Message
}

// NewConsistencyErrorf creates a new ConsistencyError with a formatted message.
func NewConsistencyErrorf(format string, args ...interface{}) error {
	return &ConsistencyError{
		Message: fmt.Sprintf(format, args...),
	}
}

// NumericalError represents a numerical routine failing to converge within
// its tolerance. It indicates a bug rather than bad input and is never
// silently approximated away.
type NumericalError struct {
	Message string
}

// Error returns the error message string.
func (e *NumericalError) Error() string {
	return e.Message
}

// NewNumericalErrorf creates a new NumericalError with a formatted message.
func NewNumericalErrorf(format string, args ...interface{}) error {
	return &NumericalError{
		Message: fmt.Sprintf(format, args...),
	}
}
