package core

import "errors"

// Sentinel errors shared across storage implementations so the HTTP layer
// can map them to status codes without knowing the backend.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrNotFound       = errors.New("not found")
)
