// Package game runs daily sessions: starting or resuming a player's attempt,
// applying submitted triples, and recording the completion when no set is
// left on the board.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/events"
	"github.com/playperu/dailyset/internal/token"
)

const DefaultSessionTTL = 60 * time.Minute

// Store is the persistence the manager needs.
type Store interface {
	CreatePlayer(ctx context.Context, username string) (dailyset.Player, error)
	Player(ctx context.Context, id int64) (dailyset.Player, error)
	PlayerByUsername(ctx context.Context, username string) (dailyset.Player, error)

	CreateSession(ctx context.Context, s dailyset.Session) error
	Session(ctx context.Context, id string) (dailyset.Session, error)
	// ActiveSession returns the unfinished, unexpired session of the player
	// for date, or dailyset.ErrNotFound.
	ActiveSession(ctx context.Context, playerID int64, date string, now time.Time) (dailyset.Session, error)
	// AdvanceSession stores s.Board if the stored version still equals
	// s.Version, and appends found when it is not nil. It returns
	// dailyset.ErrConflict when the version moved.
	AdvanceSession(ctx context.Context, s dailyset.Session, found *dailyset.FoundTriple) error
	// CompleteSession is AdvanceSession that also marks the session finished
	// and appends c when it is not nil, atomically.
	CompleteSession(ctx context.Context, s dailyset.Session, found *dailyset.FoundTriple, c *dailyset.Completion) error

	HasCompleted(ctx context.Context, playerID int64, date string) (bool, error)
	BestSeconds(ctx context.Context, playerID int64, date string) (int, bool, error)
	RecordCompletion(ctx context.Context, c dailyset.Completion) error
	FoundTriples(ctx context.Context, playerID int64, date string) ([]dailyset.FoundTriple, error)
}

// Tokens signs and verifies session and player tokens.
type Tokens interface {
	SignSession(ctx context.Context, sessionID string) (string, error)
	VerifySession(ctx context.Context, tok string) (string, error)
	SignPlayer(playerID int64) string
	VerifyPlayer(ctx context.Context, tok string) (int64, error)
}

type Leaderboard interface {
	Invalidate(date string)
	Placement(ctx context.Context, date string, playerID int64) (int, dailyset.Standing, bool, error)
}

type Config struct {
	SessionTTL time.Duration
}

type Manager struct {
	store     Store
	boards    *Boards
	tokens    Tokens
	leaders   Leaderboard
	publisher events.Publisher
	cfg       Config
	starts    singleflight.Group
	now       func() time.Time
	logger    *slog.Logger
}

func NewManager(logger *slog.Logger, cfg Config, store Store, boards *Boards, tokens Tokens, leaders Leaderboard, publisher events.Publisher) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Manager{
		store:     store,
		boards:    boards,
		tokens:    tokens,
		leaders:   leaders,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// Board returns the board for date ("" means today) and announces it to
// listeners.
func (m *Manager) Board(ctx context.Context, date string) (string, dailyset.Board, error) {
	date, err := dailyset.NormalizeDate(date, m.now())
	if err != nil {
		return "", nil, err
	}
	board := m.boards.Get(date)
	m.publisher.Publish(ctx, events.DailyUpdate{Day: date})
	return date, board, nil
}

// Identity is a resolved player. Token is set only when a new player was
// created and needs its identity token delivered.
type Identity struct {
	PlayerID int64
	Username string
	Token    string
}

// Identify resolves the caller to a player: by username when it names an
// existing player, then by player token, else by creating a player named
// username (or an anonymous name).
func (m *Manager) Identify(ctx context.Context, username, playerToken string) (Identity, error) {
	if username = strings.TrimSpace(username); username != "" {
		name, err := dailyset.NormalizeUsername(username)
		if err != nil {
			return Identity{}, err
		}
		username = name
		p, err := m.store.PlayerByUsername(ctx, username)
		if err == nil {
			return Identity{PlayerID: p.ID, Username: p.Username}, nil
		}
		if !errors.Is(err, dailyset.ErrNotFound) {
			return Identity{}, fmt.Errorf("looking up player: %w", err)
		}
	}

	if playerToken != "" {
		id, err := m.tokens.VerifyPlayer(ctx, playerToken)
		switch {
		case err == nil:
			p, err := m.store.Player(ctx, id)
			if err != nil {
				return Identity{}, fmt.Errorf("loading player: %w", err)
			}
			return Identity{PlayerID: p.ID, Username: p.Username}, nil
		case errors.Is(err, dailyset.ErrAuth), errors.Is(err, dailyset.ErrValidation), errors.Is(err, dailyset.ErrNotFound):
			m.logger.Debug("ignoring unusable player token", "error", err)
		default:
			return Identity{}, err
		}
	}

	if username == "" {
		username = "anon-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	p, err := m.store.CreatePlayer(ctx, username)
	if err != nil {
		return Identity{}, fmt.Errorf("creating player: %w", err)
	}
	m.logger.Info("player created", "player_id", p.ID, "username", p.Username)
	return Identity{PlayerID: p.ID, Username: p.Username, Token: m.tokens.SignPlayer(p.ID)}, nil
}

// Started is the result of StartOrResume.
type Started struct {
	Session dailyset.Session
	Token   string
	Resumed bool
}

// StartOrResume returns the player's active session for date, or creates
// one. A player who already completed date gets dailyset.ErrAlreadyCompleted.
// playerID nil starts an anonymous session, which is never resumed.
func (m *Manager) StartOrResume(ctx context.Context, playerID *int64, date string) (Started, error) {
	date, err := dailyset.NormalizeDate(date, m.now())
	if err != nil {
		return Started{}, err
	}
	if playerID == nil {
		return m.create(ctx, nil, date)
	}

	key := strconv.FormatInt(*playerID, 10) + "/" + date
	// The shared start outlives any one caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := m.starts.Do(key, func() (any, error) {
		return m.startOrResume(shared, *playerID, date)
	})
	if err != nil {
		return Started{}, err
	}
	return v.(Started), nil
}

func (m *Manager) startOrResume(ctx context.Context, playerID int64, date string) (Started, error) {
	done, err := m.store.HasCompleted(ctx, playerID, date)
	if err != nil {
		return Started{}, fmt.Errorf("checking completion: %w", err)
	}
	if done {
		return Started{}, dailyset.ErrAlreadyCompleted
	}

	sess, err := m.store.ActiveSession(ctx, playerID, date, m.now())
	switch {
	case err == nil:
		tok, err := m.tokens.SignSession(ctx, sess.ID)
		if err != nil {
			return Started{}, err
		}
		m.logger.Debug("session resumed", "session_id", sess.ID, "player_id", playerID)
		return Started{Session: sess, Token: tok, Resumed: true}, nil
	case errors.Is(err, dailyset.ErrNotFound):
		return m.create(ctx, &playerID, date)
	default:
		return Started{}, fmt.Errorf("loading active session: %w", err)
	}
}

func (m *Manager) create(ctx context.Context, playerID *int64, date string) (Started, error) {
	secret, err := token.NewSecret()
	if err != nil {
		return Started{}, err
	}
	now := m.now().UTC()
	sess := dailyset.Session{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		Date:        date,
		Board:       m.boards.Get(date),
		StartedAt:   now,
		ExpiresAt:   now.Add(m.cfg.SessionTTL),
		Secret:      secret,
		LastRotated: now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return Started{}, fmt.Errorf("creating session: %w", err)
	}
	m.logger.Info("session started", "session_id", sess.ID, "date", date)
	return Started{Session: sess, Token: token.Sign([]byte(secret), sess.ID)}, nil
}

// SessionRef names a session by id or by signed token. Token wins when both
// are set.
type SessionRef struct {
	ID    string
	Token string
}

type Submitted struct {
	SessionID string
	Cards     dailyset.Triple
	Remaining dailyset.Board
	// Finished is true when this submission ended the session.
	Finished bool
	Seconds  int
}

// Submit removes the three cards at indices from the session's board. When
// the remaining board holds no set the session finishes and, for an owned
// session, a completion is recorded. Expired sessions accept nothing.
func (m *Manager) Submit(ctx context.Context, ref SessionRef, indices []int) (Submitted, error) {
	id := ref.ID
	if ref.Token != "" {
		var err error
		if id, err = m.tokens.VerifySession(ctx, ref.Token); err != nil {
			return Submitted{}, err
		}
	}
	if id == "" {
		return Submitted{}, fmt.Errorf("%w: session id or token required", dailyset.ErrValidation)
	}

	sess, err := m.store.Session(ctx, id)
	if err != nil {
		return Submitted{}, err
	}
	if sess.Finished {
		return Submitted{}, dailyset.ErrAlreadyFinished
	}
	now := m.now().UTC()
	if sess.Expired(now) {
		return Submitted{}, dailyset.ErrExpired
	}
	if sess.PlayerID != nil {
		done, err := m.store.HasCompleted(ctx, *sess.PlayerID, sess.Date)
		if err != nil {
			return Submitted{}, fmt.Errorf("checking completion: %w", err)
		}
		if done {
			return Submitted{}, dailyset.ErrAlreadyCompleted
		}
	}

	cards, err := sess.Board.Pick(indices)
	if err != nil {
		return Submitted{}, err
	}
	if !dailyset.IsValidTriple(cards[0], cards[1], cards[2]) {
		return Submitted{}, dailyset.ErrNotATriple
	}

	next := sess
	next.Board = sess.Board.Without(indices)

	var found *dailyset.FoundTriple
	if sess.PlayerID != nil {
		found = &dailyset.FoundTriple{
			PlayerID:  *sess.PlayerID,
			Date:      sess.Date,
			Cards:     cards,
			SessionID: sess.ID,
			CreatedAt: now,
		}
	}

	res := Submitted{SessionID: sess.ID, Cards: cards, Remaining: next.Board}
	if len(dailyset.FindAllTriples(next.Board)) > 0 {
		if err := m.store.AdvanceSession(ctx, next, found); err != nil {
			return Submitted{}, fmt.Errorf("saving session: %w", err)
		}
		return res, nil
	}

	next.Finished = true
	res.Finished = true
	res.Seconds = max(0, int(now.Sub(sess.StartedAt).Seconds()))

	if sess.PlayerID == nil {
		if err := m.store.CompleteSession(ctx, next, nil, nil); err != nil {
			return Submitted{}, fmt.Errorf("finishing session: %w", err)
		}
		m.logger.Info("session finished", "session_id", sess.ID, "seconds", res.Seconds)
		return res, nil
	}

	playerID := *sess.PlayerID
	prevBest, hadPrev, err := m.store.BestSeconds(ctx, playerID, sess.Date)
	if err != nil {
		return Submitted{}, fmt.Errorf("loading best time: %w", err)
	}
	c := dailyset.Completion{PlayerID: playerID, Date: sess.Date, Seconds: res.Seconds, CompletedAt: now}
	if err := m.store.CompleteSession(ctx, next, found, &c); err != nil {
		return Submitted{}, fmt.Errorf("finishing session: %w", err)
	}
	m.logger.Info("session finished", "session_id", sess.ID, "player_id", playerID, "seconds", res.Seconds)

	m.leaders.Invalidate(sess.Date)
	m.publisher.Publish(ctx, events.Completion{PlayerID: playerID, Day: sess.Date, Seconds: res.Seconds})
	if !hadPrev || res.Seconds < prevBest {
		m.publisher.Publish(ctx, events.LeaderboardChange{PlayerID: playerID, Day: sess.Date, Seconds: res.Seconds})
	}
	return res, nil
}

// Check validates a triple against the board of date without a session.
// Nothing is recorded.
func (m *Manager) Check(ctx context.Context, date string, indices []int) (dailyset.Triple, error) {
	date, err := dailyset.NormalizeDate(date, m.now())
	if err != nil {
		return dailyset.Triple{}, err
	}
	cards, err := m.boards.Get(date).Pick(indices)
	if err != nil {
		return dailyset.Triple{}, err
	}
	if !dailyset.IsValidTriple(cards[0], cards[1], cards[2]) {
		return dailyset.Triple{}, dailyset.ErrNotATriple
	}
	return cards, nil
}

// RecordDirect appends a completion for an existing player without a
// session.
func (m *Manager) RecordDirect(ctx context.Context, username, date string, seconds int) error {
	username, err := dailyset.NormalizeUsername(username)
	if err != nil {
		return err
	}
	date, err = dailyset.NormalizeDate(date, m.now())
	if err != nil {
		return err
	}
	if seconds < 0 || seconds > dailyset.MaxSeconds {
		return dailyset.ErrInvalidSeconds
	}
	p, err := m.store.PlayerByUsername(ctx, username)
	if err != nil {
		return err
	}
	c := dailyset.Completion{PlayerID: p.ID, Date: date, Seconds: seconds, CompletedAt: m.now().UTC()}
	if err := m.store.RecordCompletion(ctx, c); err != nil {
		return fmt.Errorf("recording completion: %w", err)
	}
	m.leaders.Invalidate(date)
	m.publisher.Publish(ctx, events.Completion{PlayerID: p.ID, Day: date, Seconds: seconds})
	return nil
}

// CurrentSession returns the player's active session for today.
func (m *Manager) CurrentSession(ctx context.Context, playerID int64) (dailyset.Session, error) {
	now := m.now()
	return m.store.ActiveSession(ctx, playerID, dailyset.Today(now), now)
}

type Status struct {
	Date         string `json:"date"`
	Completed    bool   `json:"completed"`
	BestSeconds  *int   `json:"best_seconds,omitempty"`
	Placement    *int   `json:"placement,omitempty"`
	TriplesFound *int   `json:"triples_found,omitempty"`
}

// Status reports whether the player completed today's puzzle and, if so,
// where they stand.
func (m *Manager) Status(ctx context.Context, playerID int64) (Status, error) {
	st := Status{Date: dailyset.Today(m.now())}
	done, err := m.store.HasCompleted(ctx, playerID, st.Date)
	if err != nil {
		return Status{}, fmt.Errorf("checking completion: %w", err)
	}
	if !done {
		return st, nil
	}
	st.Completed = true
	place, standing, ok, err := m.leaders.Placement(ctx, st.Date, playerID)
	if err != nil {
		return Status{}, err
	}
	if ok {
		st.Placement = &place
		st.BestSeconds = &standing.BestSeconds
		st.TriplesFound = &standing.TriplesFound
	}
	return st, nil
}

// FoundTriples lists the sets username found on date, oldest first. An
// unknown username has found nothing.
func (m *Manager) FoundTriples(ctx context.Context, username, date string) ([]dailyset.Triple, error) {
	username, err := dailyset.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	date, err = dailyset.NormalizeDate(date, m.now())
	if err != nil {
		return nil, err
	}
	p, err := m.store.PlayerByUsername(ctx, username)
	if errors.Is(err, dailyset.ErrNotFound) {
		return []dailyset.Triple{}, nil
	}
	if err != nil {
		return nil, err
	}
	found, err := m.store.FoundTriples(ctx, p.ID, date)
	if err != nil {
		return nil, fmt.Errorf("loading found triples: %w", err)
	}
	out := make([]dailyset.Triple, 0, len(found))
	for _, f := range found {
		out = append(out, f.Cards)
	}
	return out, nil
}
