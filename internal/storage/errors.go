package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to append a record whose
	// key already exists. Result logs do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchemaMismatch is returned when a record's parameter names differ
	// from the columns of an existing results file.
	ErrSchemaMismatch = errors.New("parameter columns do not match results log")
)
