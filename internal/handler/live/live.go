// Package live streams game notifications to browsers over a websocket or
// server-sent events.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/dailyset/internal/events"
)

const pingInterval = 30 * time.Second

var errClosed = errors.New("listener closed")

// Registry is the set of listeners notifications are fanned out to.
type Registry interface {
	Add(l events.Listener)
	Remove(l events.Listener)
}

type Handler struct {
	hub    Registry
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, hub Registry) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// Routes serves the websocket listener at "/".
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.websocket)
	return r
}

type wsListener struct {
	conn *websocket.Conn
}

func (l *wsListener) Send(ctx context.Context, data []byte) error {
	return l.conn.Write(ctx, websocket.MessageText, data)
}

func (h *Handler) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead discards anything they send and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	l := &wsListener{conn: conn}
	h.hub.Add(l)
	defer h.hub.Remove(l)
	h.logger.Debug("websocket listener connected", "remote", r.RemoteAddr)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("websocket listener gone", "remote", r.RemoteAddr)
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				h.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// sseListener hands messages to the goroutine that owns the response.
type sseListener struct {
	msgs chan []byte
	done chan struct{}
}

func (l *sseListener) Send(ctx context.Context, data []byte) error {
	select {
	case l.msgs <- data:
		return nil
	case <-l.done:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stream serves notifications as a text/event-stream.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	l := &sseListener{msgs: make(chan []byte, 1), done: make(chan struct{})}
	h.hub.Add(l)
	defer func() {
		h.hub.Remove(l)
		close(l.done)
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-l.msgs:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
