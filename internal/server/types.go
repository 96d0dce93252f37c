package server

import (
	"time"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/dailyset"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type DailyResponse struct {
	Date  string         `json:"date"`
	Board dailyset.Board `json:"board"`
}

type StartSessionRequest struct {
	Username string `json:"username,omitempty"`
	Date     string `json:"date,omitempty"`
}

type StartSessionResponse struct {
	SessionID    string         `json:"session_id"`
	SessionToken string         `json:"session_token"`
	StartTS      time.Time      `json:"start_ts"`
	Board        dailyset.Board `json:"board"`
	Resumed      bool           `json:"resumed"`
}

// SubmitSetRequest names the session by id or token. Without either the
// triple is checked against the board of Date and nothing is recorded.
type SubmitSetRequest struct {
	Indices      []int  `json:"indices"`
	Date         string `json:"date,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

type SubmitSetResponse struct {
	Valid     bool            `json:"valid"`
	Cards     dailyset.Triple `json:"cards"`
	SessionID *string         `json:"session_id"`
	Finished  bool            `json:"finished"`
	Seconds   *int            `json:"seconds,omitempty"`
}

type RotateResponse struct {
	SessionID string `json:"session_id"`
}

type CompleteRequest struct {
	Username string `json:"username"`
	Date     string `json:"date,omitempty"`
	Seconds  int    `json:"seconds"`
}

type StatusOKResponse struct {
	Status string `json:"status"`
}

type LeaderboardResponse struct {
	Date    string              `json:"date"`
	Leaders []dailyset.Standing `json:"leaders"`
}

type CurrentSessionResponse struct {
	Active    bool           `json:"active"`
	SessionID string         `json:"session_id,omitempty"`
	StartTS   *time.Time     `json:"start_ts,omitempty"`
	Board     dailyset.Board `json:"board,omitempty"`
}

type FoundSetsResponse struct {
	Username string            `json:"username"`
	Date     string            `json:"date"`
	Sets     []dailyset.Triple `json:"sets"`
}

type CacheStatsResponse struct {
	CacheStats map[string]cache.Stats `json:"cache_stats"`
	Status     string                 `json:"status"`
}
