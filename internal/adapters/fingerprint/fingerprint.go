// Package fingerprint computes stable hashes of external cache inputs.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.pactly.app/datakit/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FingerprintSource = (*FileSource)(nil)

// FileSource fingerprints a snapshot file, typically the exported contact
// book. A missing snapshot yields an empty fingerprint, which disables
// fingerprint-based invalidation until the snapshot appears.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the snapshot at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: filepath.Clean(path)}
}

// Current returns the hash of the snapshot file content.
func (s *FileSource) Current(_ context.Context) (string, error) {
	f, err := os.Open(s.path) //nolint:gosec // Path is cleaned and provided by trusted caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", zerr.With(zerr.Wrap(err, "failed to open snapshot"), "path", s.path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash snapshot"), "path", s.path)
	}
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

// Hash fingerprints a set of items independent of their order. Useful when
// the external input is already in memory (e.g. contact identifiers).
func Hash(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)

	hasher := xxhash.New()
	for _, item := range sorted {
		_, _ = hasher.WriteString(item)
		_, _ = hasher.Write([]byte{0}) // Separator
	}
	return fmt.Sprintf("%016x", hasher.Sum64())
}
