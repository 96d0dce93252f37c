package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/token"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{token.ErrMissing, http.StatusUnauthorized},
		{token.ErrSignature, http.StatusForbidden},
		{token.ErrMalformed, http.StatusBadRequest},
		{dailyset.ErrInvalidIndices, http.StatusBadRequest},
		{dailyset.ErrNotATriple, http.StatusBadRequest},
		{dailyset.ErrAlreadyFinished, http.StatusBadRequest},
		{dailyset.ErrAlreadyCompleted, http.StatusForbidden},
		{fmt.Errorf("session x: %w", dailyset.ErrNotFound), http.StatusNotFound},
		{dailyset.ErrConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
