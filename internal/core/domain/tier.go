package domain

import (
	"time"

	"go.trai.ch/zerr"
)

// Tier classifies how trustworthy a cache entry is, ordered from freshest to
// least usable. The zero value is TierFresh; callers should only obtain tiers
// through Classify.
type Tier uint8

const (
	// TierFresh entries are served as-is with no refresh.
	TierFresh Tier = iota
	// TierStale entries are served immediately while a background refresh
	// revalidates them.
	TierStale
	// TierExpired entries are served with a possibly-outdated signal; a
	// refresh is started and callers that need certainty may await it.
	TierExpired
	// TierAncient entries are too old to serve; callers block on a fetch.
	TierAncient
	// TierInvalid marks a missing entry or a schema mismatch. Behaves like
	// TierAncient but is not a function of age.
	TierInvalid
)

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case TierFresh:
		return "fresh"
	case TierStale:
		return "stale"
	case TierExpired:
		return "expired"
	case TierAncient:
		return "ancient"
	case TierInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ServeFromCache reports whether the cached payload may be returned to the
// caller. Expired is included on purpose: serve what we have, but the refresh
// is not optional.
func (t Tier) ServeFromCache() bool {
	return t == TierFresh || t == TierStale || t == TierExpired
}

// NeedsRefresh reports whether a refresh must be scheduled for this tier.
func (t Tier) NeedsRefresh() bool {
	return t != TierFresh
}

// MustBlock reports whether the caller has to wait for a fresh fetch before
// any data can be returned.
func (t Tier) MustBlock() bool {
	return t == TierAncient || t == TierInvalid
}

// Thresholds defines the age bands for one resource. An entry is Fresh below
// Fresh, Stale below Stale, Expired below Expired and Ancient beyond that.
// Bands are per-resource configuration, not universal constants.
type Thresholds struct {
	Fresh   time.Duration
	Stale   time.Duration
	Expired time.Duration
}

// Validate checks that the bands are positive and strictly increasing.
func (th Thresholds) Validate() error {
	if th.Fresh <= 0 {
		return zerr.With(ErrInvalidThresholds, "band", "fresh")
	}
	if th.Stale <= th.Fresh {
		return zerr.With(ErrInvalidThresholds, "band", "stale")
	}
	if th.Expired <= th.Stale {
		return zerr.With(ErrInvalidThresholds, "band", "expired")
	}
	return nil
}

// Classify maps an entry to its freshness tier. It is pure: no I/O, no side
// effects, deterministic for a given now.
//
// A nil entry (cache miss) and a schema mismatch are both TierInvalid
// regardless of age. A negative age means the device clock moved backwards;
// under-estimating staleness is the unsafe direction, so such entries are
// clamped to TierAncient rather than treated as fresh.
func Classify(e *Entry, now time.Time, th Thresholds, schemaVersion int) Tier {
	if e == nil {
		return TierInvalid
	}
	if e.SchemaVersion != schemaVersion {
		return TierInvalid
	}
	age := e.Age(now)
	switch {
	case age < 0:
		return TierAncient
	case age < th.Fresh:
		return TierFresh
	case age < th.Stale:
		return TierStale
	case age < th.Expired:
		return TierExpired
	default:
		return TierAncient
	}
}
