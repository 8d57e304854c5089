package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/mailguard/internal/logic"
)

var (
	// ErrUnregistered means the device has no backend registration yet.
	ErrUnregistered = errors.New("device not registered")
	// ErrOffline means there is no network connectivity.
	ErrOffline = errors.New("not connected")
	// ErrCooldown means the previous send was less than one window ago.
	ErrCooldown = errors.New("cooldown active")
)

// Connectivity reports and restores network connectivity.
type Connectivity interface {
	Connected() bool
	// Reconnect makes one attempt and reports whether the link is now up.
	Reconnect() bool
}

// Registration reports whether the backend knows this device.
type Registration interface {
	Registered() bool
}

// Gate serializes every outbound event and enforces a minimum spacing of one
// window between attempted sends, regardless of event type or outcome.
type Gate struct {
	window time.Duration
	conn   Connectivity
	sender Sender
	now    func() time.Time

	// Registration, if set, must report true before anything is sent.
	Registration Registration

	last time.Time
	sent bool
}

// NewGate creates a gate. The first send after creation is never held back.
func NewGate(window time.Duration, conn Connectivity, sender Sender, now func() time.Time) *Gate {
	return &Gate{window: window, conn: conn, sender: sender, now: now}
}

// Send checks registration, connectivity and the cooldown window in that
// order, then posts the event. The window is consumed only by an attempted
// post, whatever its result.
func (g *Gate) Send(ctx context.Context, event logic.Event) error {
	if g.Registration != nil && !g.Registration.Registered() {
		return ErrUnregistered
	}

	if !g.conn.Connected() {
		log.Printf("gate: not connected, attempting reconnect")
		if !g.conn.Reconnect() {
			return ErrOffline
		}
	}

	now := g.now()
	if g.sent && now.Sub(g.last) < g.window {
		return ErrCooldown
	}
	g.last = now
	g.sent = true

	if err := g.sender.Send(ctx, event); err != nil {
		return fmt.Errorf("send %s: %w", event.Type, err)
	}
	return nil
}

// TrySend is Send reduced to a boolean, logging why an event was not delivered.
func (g *Gate) TrySend(ctx context.Context, event logic.Event) bool {
	err := g.Send(ctx, event)
	switch {
	case err == nil:
		log.Printf("gate: sent %s event", event.Type)
		return true
	case errors.Is(err, ErrCooldown):
		log.Printf("gate: cooldown active, dropping %s event", event.Type)
	default:
		log.Printf("gate: %s event not sent: %v", event.Type, err)
	}
	return false
}

// LastSent returns the time of the last attempted send.
func (g *Gate) LastSent() (time.Time, bool) {
	return g.last, g.sent
}
