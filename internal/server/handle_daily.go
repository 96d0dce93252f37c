package server

import (
	"log/slog"
	"net/http"

	"github.com/playperu/dailyset/internal/game"
)

func handleDaily(logger *slog.Logger, games *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, board, err := games.Board(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, DailyResponse{Date: date, Board: board})
	}
}
