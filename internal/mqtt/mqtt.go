// Package mqtt mirrors mailbox events and daemon lifecycle events to an MQTT
// broker, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/mailguard/internal/logic"
)

// Topics holds the per-device topic names.
type Topics struct {
	Events string
	System string
}

// NewTopics returns "<prefix>/<serial>/events" and "<prefix>/<serial>/system".
func NewTopics(prefix, serial string) Topics {
	base := prefix + "/" + serial
	return Topics{Events: base + "/events", System: base + "/system"}
}

// Publisher mirrors events to the broker. Errors are for logging only; the
// mirror is best effort and never blocks the controller.
type Publisher interface {
	Publish(event logic.Event) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus is implemented by publishers that know their link state.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a daemon lifecycle message: STARTUP, SHUTDOWN, HEARTBEAT,
// RECONNECTED or the OFFLINE will.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name on SHUTDOWN
	RawPayload []byte // full status document; replaces the short form when set
	Retained   bool
}

// Payload is the JSON document on the events topic.
type Payload struct {
	Mailbox MailboxPayload `json:"mailbox"`
}

// MailboxPayload contains the event details.
type MailboxPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Door      string   `json:"door,omitempty"`
	Weight    *float64 `json:"weight_g,omitempty"`
	Battery   *int     `json:"battery_pct,omitempty"`
}

// FormatPayload creates the JSON payload for a mailbox event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Mailbox: MailboxPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Door:      string(event.Door),
			Weight:    event.Weight,
			Battery:   event.Battery,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the short system document used when no status snapshot
// is attached.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner is the body of SystemPayload.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload returns event.RawPayload if set, else the short form.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
