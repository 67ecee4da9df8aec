package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a greeting record does not exist.
	ErrNotFound = errors.New("greeting not found")

	// ErrConflict is returned when a record with the given stream ID already exists.
	ErrConflict = errors.New("greeting already exists")
)
