// Package store persists players, sessions, completions and found triples in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/dailyset/internal/dailyset"
)

// timeLayout is fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// created_at defaults are written by SQLite's strftime.
		t, err = time.Parse("2006-01-02T15:04:05.000Z", s)
	}
	return t, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}

// Ping checks that the database answers.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) CreatePlayer(ctx context.Context, username string) (dailyset.Player, error) {
	p := dailyset.Player{Username: username, CreatedAt: s.now().UTC()}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO players (username, created_at) VALUES (?, ?)
		RETURNING id
	`, username, formatTime(p.CreatedAt)).Scan(&p.ID)
	if isUnique(err) {
		return dailyset.Player{}, fmt.Errorf("%w: username %q is taken", dailyset.ErrConflict, username)
	}
	if err != nil {
		return dailyset.Player{}, err
	}
	return p, nil
}

func (s *SQLite) scanPlayer(row *sql.Row) (dailyset.Player, error) {
	var p dailyset.Player
	var created string
	err := row.Scan(&p.ID, &p.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("player: %w", dailyset.ErrNotFound)
	}
	if err != nil {
		return p, err
	}
	p.CreatedAt, err = parseTime(created)
	return p, err
}

func (s *SQLite) Player(ctx context.Context, id int64) (dailyset.Player, error) {
	return s.scanPlayer(s.db.QueryRowContext(ctx, `
		SELECT id, username, created_at FROM players WHERE id = ?
	`, id))
}

func (s *SQLite) PlayerByUsername(ctx context.Context, username string) (dailyset.Player, error) {
	return s.scanPlayer(s.db.QueryRowContext(ctx, `
		SELECT id, username, created_at FROM players WHERE username = ?
	`, username))
}

func (s *SQLite) PlayerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM players WHERE id = ?)
	`, id).Scan(&exists)
	return exists, err
}

func (s *SQLite) CreateSession(ctx context.Context, sess dailyset.Session) error {
	board, err := json.Marshal(sess.Board)
	if err != nil {
		return fmt.Errorf("encoding board: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, player_id, date, board, started_at, finished, expires_at, secret, last_rotated, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.PlayerID, sess.Date, string(board), formatTime(sess.StartedAt), boolInt(sess.Finished),
		formatTime(sess.ExpiresAt), sess.Secret, formatTime(sess.LastRotated), sess.Version)
	return err
}

const sessionColumns = `id, player_id, date, board, started_at, finished, expires_at, secret, last_rotated, version`

func scanSession(row *sql.Row) (dailyset.Session, error) {
	var (
		sess                             dailyset.Session
		playerID                         sql.NullInt64
		board, started, expires, rotated string
	)
	err := row.Scan(&sess.ID, &playerID, &sess.Date, &board, &started, &sess.Finished, &expires, &sess.Secret, &rotated, &sess.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, fmt.Errorf("session: %w", dailyset.ErrNotFound)
	}
	if err != nil {
		return sess, err
	}
	if playerID.Valid {
		sess.PlayerID = &playerID.Int64
	}
	if err := json.Unmarshal([]byte(board), &sess.Board); err != nil {
		return sess, fmt.Errorf("decoding board of session %s: %w", sess.ID, err)
	}
	if sess.StartedAt, err = parseTime(started); err != nil {
		return sess, err
	}
	if sess.ExpiresAt, err = parseTime(expires); err != nil {
		return sess, err
	}
	if sess.LastRotated, err = parseTime(rotated); err != nil {
		return sess, err
	}
	return sess, nil
}

func (s *SQLite) Session(ctx context.Context, id string) (dailyset.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?
	`, id))
}

// ActiveSession returns the newest unfinished session of the player for date
// that has not expired at now.
func (s *SQLite) ActiveSession(ctx context.Context, playerID int64, date string, now time.Time) (dailyset.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE player_id = ? AND date = ? AND finished = 0 AND expires_at > ?
		ORDER BY started_at DESC
		LIMIT 1
	`, playerID, date, formatTime(now)))
}

func (s *SQLite) AdvanceSession(ctx context.Context, sess dailyset.Session, found *dailyset.FoundTriple) error {
	return s.saveSession(ctx, sess, found, nil)
}

func (s *SQLite) CompleteSession(ctx context.Context, sess dailyset.Session, found *dailyset.FoundTriple, c *dailyset.Completion) error {
	return s.saveSession(ctx, sess, found, c)
}

// saveSession writes the board and finished flag of sess if its version is
// still current, together with found and c, in one transaction.
func (s *SQLite) saveSession(ctx context.Context, sess dailyset.Session, found *dailyset.FoundTriple, c *dailyset.Completion) error {
	board, err := json.Marshal(sess.Board)
	if err != nil {
		return fmt.Errorf("encoding board: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET board = ?, finished = ?, version = version + 1
		WHERE id = ? AND version = ? AND finished = 0
	`, string(board), boolInt(sess.Finished), sess.ID, sess.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, dailyset.ErrConflict)
	}

	if found != nil {
		if err := insertFoundTriple(ctx, tx, *found); err != nil {
			return err
		}
	}
	if c != nil {
		if err := insertCompletion(ctx, tx, *c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFoundTriple(ctx context.Context, db execer, f dailyset.FoundTriple) error {
	cards, err := json.Marshal(f.Cards)
	if err != nil {
		return fmt.Errorf("encoding triple: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO found_triples (player_id, date, cards, session_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.PlayerID, f.Date, string(cards), f.SessionID, formatTime(f.CreatedAt))
	return err
}

func insertCompletion(ctx context.Context, db execer, c dailyset.Completion) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO completions (player_id, date, seconds, completed_at)
		VALUES (?, ?, ?, ?)
	`, c.PlayerID, c.Date, c.Seconds, formatTime(c.CompletedAt))
	return err
}

func (s *SQLite) SessionSecret(ctx context.Context, sessionID string) (string, error) {
	var secret string
	err := s.db.QueryRowContext(ctx, `SELECT secret FROM sessions WHERE id = ?`, sessionID).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("session: %w", dailyset.ErrNotFound)
	}
	return secret, err
}

func (s *SQLite) SessionOwner(ctx context.Context, sessionID string) (*int64, error) {
	var owner sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT player_id FROM sessions WHERE id = ?`, sessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", dailyset.ErrNotFound)
	}
	if err != nil || !owner.Valid {
		return nil, err
	}
	return &owner.Int64, nil
}

func (s *SQLite) RotateSessionSecret(ctx context.Context, sessionID, secret string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET secret = ?, last_rotated = ? WHERE id = ?
	`, secret, formatTime(at), sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session: %w", dailyset.ErrNotFound)
	}
	return nil
}

func (s *SQLite) RecordCompletion(ctx context.Context, c dailyset.Completion) error {
	return insertCompletion(ctx, s.db, c)
}

func (s *SQLite) HasCompleted(ctx context.Context, playerID int64, date string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM completions WHERE player_id = ? AND date = ?)
	`, playerID, date).Scan(&exists)
	return exists, err
}

func (s *SQLite) BestSeconds(ctx context.Context, playerID int64, date string) (int, bool, error) {
	var best sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(seconds) FROM completions WHERE player_id = ? AND date = ?
	`, playerID, date).Scan(&best)
	if err != nil {
		return 0, false, err
	}
	return int(best.Int64), best.Valid, nil
}

// BestCompletions returns each player's fastest completion on date. Among
// completions tied at that time the earliest one is reported.
func (s *SQLite) BestCompletions(ctx context.Context, date string) ([]dailyset.BestCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH best AS (
			SELECT player_id, MIN(seconds) AS seconds
			FROM completions
			WHERE date = ?
			GROUP BY player_id
		)
		SELECT b.player_id, p.username, b.seconds, MIN(c.completed_at)
		FROM best b
		JOIN players p ON p.id = b.player_id
		JOIN completions c ON c.player_id = b.player_id AND c.date = ? AND c.seconds = b.seconds
		GROUP BY b.player_id, p.username, b.seconds
	`, date, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dailyset.BestCompletion
	for rows.Next() {
		var b dailyset.BestCompletion
		var completed string
		if err := rows.Scan(&b.PlayerID, &b.Username, &b.Seconds, &completed); err != nil {
			return nil, err
		}
		if b.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLite) TripleCounts(ctx context.Context, date string) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, COUNT(*) FROM found_triples WHERE date = ? GROUP BY player_id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// FoundTriples lists the triples the player found on date in the order they
// were found.
func (s *SQLite) FoundTriples(ctx context.Context, playerID int64, date string) ([]dailyset.FoundTriple, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cards, session_id, created_at FROM found_triples
		WHERE player_id = ? AND date = ?
		ORDER BY created_at, id
	`, playerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dailyset.FoundTriple
	for rows.Next() {
		f := dailyset.FoundTriple{PlayerID: playerID, Date: date}
		var cards, created string
		if err := rows.Scan(&cards, &f.SessionID, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cards), &f.Cards); err != nil {
			return nil, fmt.Errorf("decoding triple: %w", err)
		}
		if f.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
