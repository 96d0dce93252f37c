package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/token"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v. An empty body leaves v as is.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps an error class to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, token.ErrMissing):
		return http.StatusUnauthorized
	case errors.Is(err, dailyset.ErrValidation), errors.Is(err, dailyset.ErrNotATriple),
		errors.Is(err, dailyset.ErrAlreadyFinished):
		return http.StatusBadRequest
	case errors.Is(err, dailyset.ErrAuth), errors.Is(err, dailyset.ErrAlreadyCompleted):
		return http.StatusForbidden
	case errors.Is(err, dailyset.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dailyset.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErr answers with the status of err. Unclassified errors are logged
// and hidden from the client.
func writeErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
