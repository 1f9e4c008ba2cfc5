package shared

import "errors"

var (
	// ErrInvalidCredentials indicates that no active user matches a login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession occurs when a handler needs a session the middleware did not load.
	ErrNoSession = errors.New("session not loaded")
)
