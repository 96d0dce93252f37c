package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/game"
	"github.com/playperu/dailyset/internal/metrics"
	"github.com/playperu/dailyset/internal/token"
)

func handleStartSession(logger *slog.Logger, games *game.Manager, m *metrics.Metrics, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		who, err := games.Identify(r.Context(), req.Username, cookieValue(r, playerCookieName))
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		if who.Token != "" {
			setTokenCookie(w, playerCookieName, who.Token, secure)
		}

		started, err := games.StartOrResume(r.Context(), &who.PlayerID, req.Date)
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		kind := "new"
		if started.Resumed {
			kind = "resumed"
		}
		m.SessionsStarted.WithLabelValues(kind).Inc()

		setTokenCookie(w, sessionCookieName, started.Token, secure)
		writeJSON(w, http.StatusOK, StartSessionResponse{
			SessionID:    started.Session.ID,
			SessionToken: started.Token,
			StartTS:      started.Session.StartedAt,
			Board:        started.Session.Board,
			Resumed:      started.Resumed,
		})
	}
}

func handleSubmitSet(logger *slog.Logger, games *game.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitSetRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.SessionID == "" && req.SessionToken == "" {
			cards, err := games.Check(r.Context(), req.Date, req.Indices)
			if err != nil {
				m.Submissions.WithLabelValues(submissionResult(err)).Inc()
				writeErr(w, r, logger, err)
				return
			}
			m.Submissions.WithLabelValues("checked").Inc()
			writeJSON(w, http.StatusOK, SubmitSetResponse{Valid: true, Cards: cards})
			return
		}

		res, err := games.Submit(r.Context(), game.SessionRef{ID: req.SessionID, Token: req.SessionToken}, req.Indices)
		if err != nil {
			m.Submissions.WithLabelValues(submissionResult(err)).Inc()
			writeErr(w, r, logger, err)
			return
		}
		m.Submissions.WithLabelValues("accepted").Inc()

		resp := SubmitSetResponse{Valid: true, Cards: res.Cards, SessionID: &res.SessionID, Finished: res.Finished}
		if res.Finished {
			resp.Seconds = &res.Seconds
			m.Completions.Inc()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func submissionResult(err error) string {
	switch {
	case errors.Is(err, dailyset.ErrNotATriple):
		return "not_a_triple"
	case errors.Is(err, dailyset.ErrConflict):
		return "conflict"
	case errors.Is(err, dailyset.ErrAlreadyFinished), errors.Is(err, dailyset.ErrAlreadyCompleted):
		return "replay"
	case errors.Is(err, dailyset.ErrValidation):
		return "invalid"
	case errors.Is(err, dailyset.ErrAuth):
		return "unauthorized"
	}
	return "error"
}

func handleRotateSession(logger *slog.Logger, signer *token.Signer, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		tok, err := signer.Rotate(r.Context(), sessionID, bearerToken(r), cookieValue(r, playerCookieName))
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}

		setTokenCookie(w, sessionCookieName, tok, secure)
		writeJSON(w, http.StatusOK, RotateResponse{SessionID: sessionID})
	}
}

func handleCurrentSession(logger *slog.Logger, games *game.Manager, signer *token.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := cookiePlayer(r, signer)
		if !ok {
			writeJSON(w, http.StatusOK, CurrentSessionResponse{})
			return
		}

		sess, err := games.CurrentSession(r.Context(), playerID)
		if errors.Is(err, dailyset.ErrNotFound) {
			writeJSON(w, http.StatusOK, CurrentSessionResponse{})
			return
		}
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, CurrentSessionResponse{
			Active:    true,
			SessionID: sess.ID,
			StartTS:   &sess.StartedAt,
			Board:     sess.Board,
		})
	}
}
