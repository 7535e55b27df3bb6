package domain

import "time"

// Event is the closed set of notifications the data layer publishes. Typed
// payloads replace stringly-keyed notification names; subscribers switch on
// the concrete type.
type Event interface {
	event()
}

// RefreshStarted is published when a remote fetch for a resource begins.
type RefreshStarted struct {
	Key string
}

// RefreshSucceeded is published after a fetch result has been committed.
type RefreshSucceeded struct {
	Key       string
	FetchedAt time.Time
}

// RefreshFailed is published when a fetch errors. Background callers never
// see the error directly; this event is how they observe it.
type RefreshFailed struct {
	Key string
	Err error
}

// SessionInvalid is published when the backend rejects the current token.
// The surrounding app should trigger re-authentication.
type SessionInvalid struct {
	Key string
}

// CacheCleared is published after a logout or privacy-initiated clear has
// removed all persisted entries.
type CacheCleared struct{}

func (RefreshStarted) event()   {}
func (RefreshSucceeded) event() {}
func (RefreshFailed) event()    {}
func (SessionInvalid) event()   {}
func (CacheCleared) event()     {}
