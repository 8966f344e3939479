package domain

import "errors"

var (
	// ErrValidation is returned for bad configuration, an out-of-range
	// answer index, or an operation outside its valid session state.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a user already has an active session.
	ErrConflict = errors.New("session already active")
	// ErrNotFound indicates the question bank cannot supply the requested
	// count, or a referenced session/user is unknown.
	ErrNotFound = errors.New("not found")
	// ErrPersistence indicates the external stats write failed. Not fatal:
	// results are still shown and the update is queued for reconciliation.
	ErrPersistence = errors.New("stats persistence failed")
)
