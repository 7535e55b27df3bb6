package domain

import "go.trai.ch/zerr"

var (
	// ErrUnauthorized is returned when the backend rejects the session token.
	// It always propagates, even from background refreshes, so the app can
	// trigger re-authentication.
	ErrUnauthorized = zerr.New("session token rejected")

	// ErrSessionEnded is returned when an operation needs an authenticated
	// session but the user has logged out.
	ErrSessionEnded = zerr.New("session ended")

	// ErrUnknownResource is returned when a resource key has no registered
	// coordinator.
	ErrUnknownResource = zerr.New("unknown resource")

	// ErrInvalidThresholds is returned when configured age bands are not
	// strictly increasing.
	ErrInvalidThresholds = zerr.New("invalid freshness thresholds")
)
