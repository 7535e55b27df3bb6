package ports

import "go.pactly.app/datakit/internal/core/domain"

// EntryStore persists one cache entry per resource key for the current user.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type EntryStore interface {
	// Load reads the persisted entry for a key. A missing, corrupt or
	// truncated record degrades to a cache miss: (nil, nil). Errors are
	// reserved for I/O failures the caller may want to log.
	Load(key string) (*domain.Entry, error)

	// Save atomically replaces the persisted entry for a key. A concurrent
	// reader or a crash never observes a half-written record.
	Save(key string, entry domain.Entry) error

	// Clear deletes the persisted entry for a key. Safe to call when no
	// entry exists.
	Clear(key string) error

	// ClearAll deletes every persisted entry. Used on logout and on
	// privacy-initiated cache clears.
	ClearAll() error
}
