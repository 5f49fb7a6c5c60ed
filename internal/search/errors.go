package search

import "errors"

// ErrValidation matches every request validation failure.
var ErrValidation = errors.New("invalid request")

// ValidationError describes a violated request constraint. Its message is
// safe to show to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

var (
	ErrEmptyQuery     = &ValidationError{Message: "Query cannot be empty!"}
	ErrNegativeAmount = &ValidationError{Message: "Amount of results cannot be negative!"}

	// ErrOrphanChunk marks a chunk whose parent paper is not in the store.
	ErrOrphanChunk = errors.New("chunk parent not found")
)
