package ports

import "context"

// FingerprintSource reports the current hash of an external input whose
// change should invalidate a cache entry independent of age, e.g. the
// device contact book backing friend suggestions. Resources without such an
// input simply have no source configured.
//
//go:generate go run go.uber.org/mock/mockgen -source=fingerprint.go -destination=mocks/mock_fingerprint.go -package=mocks
type FingerprintSource interface {
	// Current returns the fingerprint of the external input right now.
	// An empty string means the input is unavailable; age-based
	// classification then stands alone.
	Current(ctx context.Context) (string, error)
}
