// Package events carries game notifications to live listeners.
package events

import (
	"context"
	"encoding/json"

	"github.com/playperu/dailyset/internal/dailyset"
)

type Type string

const (
	TypeDailyUpdate       Type = "daily_update"
	TypeCompletion        Type = "completion"
	TypeLeaderboardChange Type = "leaderboard_change"
)

// Event is one of DailyUpdate, Completion or LeaderboardChange.
type Event interface {
	Type() Type
	// Date is the puzzle date the event belongs to.
	Date() string
	sealed()
}

type DailyUpdate struct {
	Day string
}

type Completion struct {
	PlayerID int64
	Day      string
	Seconds  int
	// Username and Leaders are attached by the Hub before delivery.
	Username *string
	Leaders  []dailyset.Standing
}

type LeaderboardChange struct {
	PlayerID int64
	Day      string
	Seconds  int
}

func (DailyUpdate) Type() Type       { return TypeDailyUpdate }
func (Completion) Type() Type        { return TypeCompletion }
func (LeaderboardChange) Type() Type { return TypeLeaderboardChange }

func (e DailyUpdate) Date() string       { return e.Day }
func (e Completion) Date() string        { return e.Day }
func (e LeaderboardChange) Date() string { return e.Day }

func (DailyUpdate) sealed()       {}
func (Completion) sealed()        {}
func (LeaderboardChange) sealed() {}

func (e DailyUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Type   `json:"type"`
		Date string `json:"date"`
	}{e.Type(), e.Day})
}

func (e Completion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     Type                `json:"type"`
		PlayerID int64               `json:"player_id"`
		Date     string              `json:"date"`
		Seconds  int                 `json:"seconds"`
		Username *string             `json:"username,omitempty"`
		Leaders  []dailyset.Standing `json:"leaders,omitempty"`
	}{e.Type(), e.PlayerID, e.Day, e.Seconds, e.Username, e.Leaders})
}

func (e LeaderboardChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     Type   `json:"type"`
		PlayerID int64  `json:"player_id"`
		Date     string `json:"date"`
		Seconds  int    `json:"seconds"`
	}{e.Type(), e.PlayerID, e.Day, e.Seconds})
}

// Decode parses a JSON notification back into its Event variant.
func Decode(data []byte) (Event, error) {
	var raw struct {
		Type     Type                `json:"type"`
		PlayerID int64               `json:"player_id"`
		Date     string              `json:"date"`
		Seconds  int                 `json:"seconds"`
		Username *string             `json:"username"`
		Leaders  []dailyset.Standing `json:"leaders"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch raw.Type {
	case TypeDailyUpdate:
		return DailyUpdate{Day: raw.Date}, nil
	case TypeCompletion:
		return Completion{PlayerID: raw.PlayerID, Day: raw.Date, Seconds: raw.Seconds, Username: raw.Username, Leaders: raw.Leaders}, nil
	case TypeLeaderboardChange:
		return LeaderboardChange{PlayerID: raw.PlayerID, Day: raw.Date, Seconds: raw.Seconds}, nil
	}
	return nil, &UnknownTypeError{Type: raw.Type}
}

type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return "unknown event type " + string(e.Type)
}

// Publisher accepts events without blocking the caller on delivery.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout publishes every event to each of its publishers.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		p.Publish(ctx, ev)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
