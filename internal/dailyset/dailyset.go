// Package dailyset defines the core domain types, the triple rule and the
// daily board generator. It imports nothing outside the standard library.
package dailyset

import "time"

type Player struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// Session is one player's attempt at the board of a given date.
type Session struct {
	ID          string
	PlayerID    *int64
	Date        string
	Board       Board
	StartedAt   time.Time
	Finished    bool
	ExpiresAt   time.Time
	Secret      string
	LastRotated time.Time
	// Version increments on every persisted board change.
	Version int
}

func (s Session) Expired(now time.Time) bool {
	return !s.Finished && !now.Before(s.ExpiresAt)
}

// OwnedBy reports whether the session belongs to playerID.
func (s Session) OwnedBy(playerID int64) bool {
	return s.PlayerID != nil && *s.PlayerID == playerID
}

type Completion struct {
	PlayerID    int64
	Date        string
	Seconds     int
	CompletedAt time.Time
}

type FoundTriple struct {
	PlayerID  int64
	Date      string
	Cards     Triple
	SessionID string
	CreatedAt time.Time
}

// BestCompletion is a player's fastest completion on a date. CompletedAt is
// the earliest completion among those tied at Seconds.
type BestCompletion struct {
	PlayerID    int64
	Username    string
	Seconds     int
	CompletedAt time.Time
}

// Standing is one ranked leaderboard row.
type Standing struct {
	PlayerID         int64     `json:"-"`
	Username         string    `json:"username"`
	BestSeconds      int       `json:"best_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
	TriplesFound     int       `json:"triples_found"`
	EffectiveSeconds float64   `json:"effective_seconds"`
}
