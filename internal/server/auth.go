package server

import (
	"context"
	"net/http"
	"strings"
)

const (
	playerCookieName  = "player_token"
	sessionCookieName = "session_token"
)

func setTokenCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// bearerToken returns the Authorization bearer token, falling back to the
// session cookie.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		if tok := strings.TrimSpace(auth[len("bearer "):]); tok != "" {
			return tok
		}
	}
	return cookieValue(r, sessionCookieName)
}

type playerVerifier interface {
	VerifyPlayer(ctx context.Context, tok string) (int64, error)
}

// cookiePlayer resolves the caller from the player cookie. ok is false when
// the cookie is absent or does not verify.
func cookiePlayer(r *http.Request, v playerVerifier) (id int64, ok bool) {
	tok := cookieValue(r, playerCookieName)
	if tok == "" {
		return 0, false
	}
	id, err := v.VerifyPlayer(r.Context(), tok)
	if err != nil {
		return 0, false
	}
	return id, true
}
