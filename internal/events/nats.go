package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Envelope is the cross-instance message format on room.<date>.update.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	From    string          `json:"from,omitempty"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// NATSBridge mirrors events to other instances through NATS and hands the
// events other instances publish to the local publisher.
type NATSBridge struct {
	nc     *nats.Conn
	local  Publisher
	origin string
	logger *slog.Logger
}

func NewNATSBridge(logger *slog.Logger, nc *nats.Conn, local Publisher) *NATSBridge {
	return &NATSBridge{nc: nc, local: local, origin: randomID(), logger: logger}
}

func Subject(room string) string {
	return "room." + room + ".update"
}

func (b *NATSBridge) Publish(_ context.Context, ev Event) {
	data, err := b.encode(ev, time.Now().UTC())
	if err != nil {
		b.logger.Error("encoding envelope", "error", err)
		return
	}
	if err := b.nc.Publish(Subject(ev.Date()), data); err != nil {
		b.logger.Warn("nats publish failed", "error", err)
	}
}

func (b *NATSBridge) encode(ev Event, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		V:       1,
		Type:    "update",
		Room:    ev.Date(),
		From:    b.origin,
		ID:      randomID(),
		TS:      now,
		Payload: payload,
	})
}

// handle decodes an envelope from another instance. It returns nil for
// envelopes this instance sent itself.
func (b *NATSBridge) handle(subject string, data []byte) (Event, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("unexpected subject %q", subject)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.From == b.origin {
		return nil, nil
	}
	return Decode(env.Payload)
}

// Subscribe relays room updates from other instances until the returned
// subscription is drained.
func (b *NATSBridge) Subscribe() (*nats.Subscription, error) {
	return b.nc.Subscribe(Subject("*"), func(m *nats.Msg) {
		ev, err := b.handle(m.Subject, m.Data)
		if err != nil {
			b.logger.Debug("ignoring room update", "subject", m.Subject, "error", err)
			return
		}
		if ev != nil {
			b.local.Publish(context.Background(), ev)
		}
	})
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
