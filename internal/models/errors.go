package models

import "errors"

// Error types shared across repositories and engines.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique constraint rejects a create.
	ErrAlreadyExists = errors.New("already exists")
)
