package models

import "errors"

var (
	// ErrNotFound is returned when a referenced project, session or log is absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a concurrent writer won a versioned update.
	ErrConflict = errors.New("concurrent update conflict")
)
