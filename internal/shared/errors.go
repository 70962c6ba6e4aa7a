package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request that can never succeed as submitted.
	ErrValidation = errors.New("validation failed")
	// ErrCapacityExceeded indicates the backing store refused a write because it is full.
	ErrCapacityExceeded = errors.New("storage capacity exceeded")
)
