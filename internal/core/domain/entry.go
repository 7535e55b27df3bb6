// Package domain contains the core types for snapshot caching.
package domain

import (
	"encoding/json"
	"time"
)

// Entry is one persisted cache record for a logical resource. The payload is
// opaque to the caching machinery; only its identity and metadata matter.
type Entry struct {
	// Payload is the serialized domain snapshot (friends list, analytics
	// records, app state).
	Payload json.RawMessage `json:"payload"`
	// FetchedAt is the wall-clock time the payload was last confirmed fresh
	// against the backend.
	FetchedAt time.Time `json:"fetchedAt"`
	// Fingerprint is a hash of an external input that can invalidate the
	// entry independently of age. Empty means age is the only signal.
	Fingerprint string `json:"fingerprint,omitempty"`
	// SchemaVersion is bumped whenever the payload shape changes. A mismatch
	// with the running version makes the entry unusable at any age.
	SchemaVersion int `json:"schemaVersion"`
}

// Age returns how long ago the entry was fetched relative to now.
// The result is negative when the device clock moved backwards.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
