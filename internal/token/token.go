// Package token issues and verifies the "<identifier>.<hex digest>" bearer
// tokens used for game sessions and anonymous player identity.
//
// Session tokens are keyed by the session's own secret, so rotating that
// secret revokes every token issued for the session and nothing else.
// Player tokens are keyed by the service secret and are never rotated.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/playperu/dailyset/internal/dailyset"
)

const digestLen = sha256.Size * 2

// DevSecret is the development service secret. Config refuses it in
// production.
const DevSecret = "dev-secret-change-me"

var (
	// ErrMalformed reports a token that does not have the wire format.
	ErrMalformed = fmt.Errorf("%w: malformed token", dailyset.ErrValidation)
	// ErrSignature reports a well-formed token whose digest does not verify.
	ErrSignature = fmt.Errorf("%w: invalid token signature", dailyset.ErrAuth)
	// ErrMissing reports that a required token was not presented.
	ErrMissing = fmt.Errorf("%w: missing token", dailyset.ErrAuth)
	// ErrNotOwner reports a valid player token for a different player.
	ErrNotOwner = fmt.Errorf("%w: not session owner", dailyset.ErrAuth)
)

// SessionKeys is the storage the signer needs for session tokens.
type SessionKeys interface {
	SessionSecret(ctx context.Context, sessionID string) (string, error)
	SessionOwner(ctx context.Context, sessionID string) (*int64, error)
	RotateSessionSecret(ctx context.Context, sessionID, secret string, at time.Time) error
}

type PlayerDirectory interface {
	PlayerExists(ctx context.Context, playerID int64) (bool, error)
}

type Signer struct {
	secret   []byte
	sessions SessionKeys
	players  PlayerDirectory
	now      func() time.Time
	logger   *slog.Logger
}

func NewSigner(logger *slog.Logger, serviceSecret string, sessions SessionKeys, players PlayerDirectory) *Signer {
	return &Signer{
		secret:   []byte(serviceSecret),
		sessions: sessions,
		players:  players,
		now:      time.Now,
		logger:   logger,
	}
}

// Sign returns "<id>.<hex HMAC-SHA256(key, id)>".
func Sign(key []byte, id string) string {
	return id + "." + digest(key, id)
}

// Parse splits a token into identifier and digest without checking the
// signature.
func Parse(tok string) (id, sig string, err error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != digestLen {
		return "", "", ErrMalformed
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", "", ErrMalformed
	}
	return parts[0], parts[1], nil
}

// Verify checks tok against key and returns its identifier.
func Verify(key []byte, tok string) (string, error) {
	id, sig, err := Parse(tok)
	if err != nil {
		return "", err
	}
	if !hmac.Equal([]byte(digest(key, id)), []byte(sig)) {
		return "", ErrSignature
	}
	return id, nil
}

func digest(key []byte, id string) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(id))
	return hex.EncodeToString(m.Sum(nil))
}

// NewSecret returns 32 random bytes, hex encoded.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SignSession signs sessionID with the session's current secret.
func (s *Signer) SignSession(ctx context.Context, sessionID string) (string, error) {
	secret, err := s.sessions.SessionSecret(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session secret: %w", err)
	}
	return Sign([]byte(secret), sessionID), nil
}

// VerifySession returns the session id of a valid session token. An unknown
// session verifies as ErrSignature so callers cannot probe for ids.
func (s *Signer) VerifySession(ctx context.Context, tok string) (string, error) {
	id, _, err := Parse(tok)
	if err != nil {
		return "", err
	}
	secret, err := s.sessions.SessionSecret(ctx, id)
	if errors.Is(err, dailyset.ErrNotFound) {
		return "", ErrSignature
	}
	if err != nil {
		return "", fmt.Errorf("loading session secret: %w", err)
	}
	return Verify([]byte(secret), tok)
}

func (s *Signer) SignPlayer(playerID int64) string {
	return Sign(s.secret, strconv.FormatInt(playerID, 10))
}

// VerifyPlayer returns the player id of a valid player token whose player
// still exists. A non-numeric identifier is malformed whatever its digest.
func (s *Signer) VerifyPlayer(ctx context.Context, tok string) (int64, error) {
	raw, sig, err := Parse(tok)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	if !hmac.Equal([]byte(digest(s.secret, raw)), []byte(sig)) {
		return 0, ErrSignature
	}
	ok, err := s.players.PlayerExists(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("looking up player: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("player %d: %w", id, dailyset.ErrNotFound)
	}
	return id, nil
}

// Rotate replaces the secret of sessionID and returns a token signed with the
// new one. sessionToken must be a valid token for exactly sessionID; when the
// session has an owner, playerToken must identify that owner.
func (s *Signer) Rotate(ctx context.Context, sessionID, sessionToken, playerToken string) (string, error) {
	if sessionToken == "" {
		return "", ErrMissing
	}
	sid, err := s.VerifySession(ctx, sessionToken)
	if err != nil {
		return "", err
	}
	if sid != sessionID {
		return "", ErrSignature
	}

	owner, err := s.sessions.SessionOwner(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session owner: %w", err)
	}
	if owner != nil {
		if playerToken == "" {
			return "", ErrMissing
		}
		pid, err := s.VerifyPlayer(ctx, playerToken)
		if errors.Is(err, dailyset.ErrNotFound) || (err == nil && pid != *owner) {
			return "", ErrNotOwner
		}
		if err != nil {
			return "", err
		}
	}

	secret, err := NewSecret()
	if err != nil {
		return "", err
	}
	if err := s.sessions.RotateSessionSecret(ctx, sessionID, secret, s.now().UTC()); err != nil {
		return "", fmt.Errorf("rotating session secret: %w", err)
	}
	s.logger.Info("session secret rotated", "session_id", sessionID)
	return Sign([]byte(secret), sessionID), nil
}
