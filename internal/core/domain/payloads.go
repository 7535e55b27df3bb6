package domain

import "time"

// Friend is one confirmed connection in the user's social graph.
type Friend struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	CurrentStreak int       `json:"currentStreak"`
	LastActiveAt  time.Time `json:"lastActiveAt"`
}

// FriendRequest is a pending incoming or outgoing connection request.
type FriendRequest struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	SentAt     time.Time `json:"sentAt"`
}

// FriendsSnapshot is the cached friends resource: the confirmed graph plus
// pending requests, as returned by one backend call.
type FriendsSnapshot struct {
	Friends  []Friend        `json:"friends"`
	Requests []FriendRequest `json:"requests"`
}

// AnalyticsRecord aggregates one habit's outcomes for a recipient: how often
// it was completed, what was staked and what was forfeited. Amounts are in
// cents to avoid float drift.
type AnalyticsRecord struct {
	HabitID         string    `json:"habitId"`
	HabitName       string    `json:"habitName"`
	RecipientID     string    `json:"recipientId"`
	CompletionRate  float64   `json:"completionRate"`
	StakedCents     int64     `json:"stakedCents"`
	ForfeitedCents  int64     `json:"forfeitedCents"`
	CurrentStreak   int       `json:"currentStreak"`
	PeriodStart     time.Time `json:"periodStart"`
	PeriodEnd       time.Time `json:"periodEnd"`
}

// StagedChange is a pending app-state mutation keyed by setting name. Values
// use the Value union so arbitrary JSON scalars and lists survive a round
// trip without untyped decoding.
type StagedChange struct {
	Key      string    `json:"key"`
	Value    Value     `json:"value"`
	StagedAt time.Time `json:"stagedAt"`
}

// AppState is the generic app state snapshot.
type AppState struct {
	Settings map[string]Value `json:"settings"`
	Staged   []StagedChange   `json:"staged"`
}
