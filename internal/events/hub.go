package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	queueSize   = 256
	outboxSize  = 8
	sendTimeout = 5 * time.Second
)

// Listener is one live connection that wants notifications.
type Listener interface {
	Send(ctx context.Context, data []byte) error
}

// EnrichFunc decorates a completion event before it is delivered.
type EnrichFunc func(ctx context.Context, ev Completion) Completion

// Hub is an in-process broadcaster. Each listener receives at most one
// message per interval; events arriving faster than that, or while the
// listener's outbox is full, are dropped for that listener. A listener whose
// Send fails is removed for good.
type Hub struct {
	mu        sync.RWMutex
	listeners map[Listener]*client

	queue    chan Event
	interval time.Duration
	enrich   EnrichFunc
	logger   *slog.Logger
}

// client owns the outbox of one listener and the goroutine writing it.
type client struct {
	limiter *rate.Limiter
	outbox  chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(logger *slog.Logger, interval time.Duration, enrich EnrichFunc) *Hub {
	return &Hub{
		listeners: make(map[Listener]*client),
		queue:     make(chan Event, queueSize),
		interval:  interval,
		enrich:    enrich,
		logger:    logger,
	}
}

func (h *Hub) Add(l Listener) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		limiter: rate.NewLimiter(rate.Every(h.interval), 1),
		outbox:  make(chan []byte, outboxSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	h.mu.Lock()
	if old, ok := h.listeners[l]; ok {
		old.cancel()
	}
	h.listeners[l] = c
	h.mu.Unlock()

	go h.write(l, c)
}

func (h *Hub) Remove(l Listener) {
	h.mu.Lock()
	c, ok := h.listeners[l]
	if ok {
		delete(h.listeners, l)
	}
	h.mu.Unlock()
	if ok {
		c.cancel()
	}
}

// drop removes l only if c is still its registration.
func (h *Hub) drop(l Listener, c *client) {
	h.mu.Lock()
	if h.listeners[l] == c {
		delete(h.listeners, l)
	}
	h.mu.Unlock()
	c.cancel()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// write delivers l's outbox until the listener is removed or a send fails.
func (h *Hub) write(l Listener, c *client) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.outbox:
			sctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
			err := l.Send(sctx, data)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					h.logger.Debug("listener send failed, removing", "error", err)
				}
				h.drop(l, c)
				return
			}
		}
	}
}

// Publish queues ev for delivery by Run. It never blocks; when the queue is
// full the event is dropped.
func (h *Hub) Publish(_ context.Context, ev Event) {
	select {
	case h.queue <- ev:
	default:
		h.logger.Warn("event queue full, dropping event", "type", ev.Type(), "date", ev.Date())
	}
}

// Run delivers queued events until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.queue:
			h.Broadcast(ctx, ev)
		}
	}
}

// Broadcast hands ev to every listener's outbox without waiting for
// delivery.
func (h *Hub) Broadcast(ctx context.Context, ev Event) {
	if c, ok := ev.(Completion); ok && h.enrich != nil {
		ev = h.enrich(ctx, c)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encoding event", "type", ev.Type(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.listeners {
		if !c.limiter.Allow() {
			h.logger.Debug("listener throttled, dropping event", "type", ev.Type())
			continue
		}
		select {
		case c.outbox <- data:
		default:
			h.logger.Debug("listener busy, dropping event", "type", ev.Type())
		}
	}
}
