// Package store persists cache entries as flat JSON files, one per
// resource key.
package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.pactly.app/datakit/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.EntryStore on a directory of JSON files. Writes go
// through a temp file plus rename so a crash or a concurrent reader never
// observes a half-written entry.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create cache directory")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) string {
	// Resource keys are lowercase identifiers; anything else is flattened
	// so a key can never escape the cache directory.
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, key+".json")
}

// Load reads the persisted entry for key. Missing, empty or corrupt files
// degrade to a cache miss rather than an error.
func (s *Store) Load(key string) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // Path is cleaned and key is sanitized above
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read cache entry"), "key", key)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entry domain.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corruption degrades to a miss; the next refresh rewrites the file.
		return nil, nil
	}
	return &entry, nil
}

// Save atomically replaces the persisted entry for key.
func (s *Store) Save(key string, entry domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to marshal cache entry"), "key", key)
	}

	dst := s.path(key)
	tmp := dst + ".tmp"
	//nolint:gosec // Path is cleaned and key is sanitized above
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write cache entry"), "key", key)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to replace cache entry"), "key", key)
	}
	return nil
}

// Clear deletes the persisted entry for key. Clearing a missing entry is
// not an error.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "failed to clear cache entry"), "key", key)
	}
	return nil
}

// ClearAll deletes every persisted entry and leaves an empty cache
// directory behind.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return zerr.Wrap(err, "failed to clear cache directory")
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to recreate cache directory")
	}
	return nil
}
