package domain

import "time"

// Resource keys for the snapshots the data layer maintains. Exactly one
// cache entry exists per key per authenticated user.
const (
	// KeyFriends is the social graph snapshot (friends plus pending requests).
	KeyFriends = "friends"
	// KeyAnalytics is the per-recipient habit analytics aggregate.
	KeyAnalytics = "recipient-analytics"
	// KeyAppState is the generic app state snapshot (settings, staged changes).
	KeyAppState = "app-state"
)

// Schema versions for the payload types above. Bump when the corresponding
// payload shape changes; persisted entries with an older version are treated
// as cache misses on next access, no eager sweep needed.
const (
	FriendsSchemaVersion   = 3
	AnalyticsSchemaVersion = 2
	AppStateSchemaVersion  = 1
)

// DefaultThresholds returns the built-in age bands for a resource key.
// Relationship data moves fast, so its bands are minutes-scale; analytics
// aggregates are heavier and tolerate longer bands. Configuration may
// override any of these.
func DefaultThresholds(key string) Thresholds {
	switch key {
	case KeyFriends:
		return Thresholds{Fresh: 30 * time.Minute, Stale: 4 * time.Hour, Expired: 24 * time.Hour}
	case KeyAnalytics:
		return Thresholds{Fresh: 45 * time.Minute, Stale: 6 * time.Hour, Expired: 24 * time.Hour}
	default:
		return Thresholds{Fresh: 5 * time.Minute, Stale: 30 * time.Minute, Expired: 2 * time.Hour}
	}
}
