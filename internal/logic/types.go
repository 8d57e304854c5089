// Package logic contains pure business logic for mailbox event detection.
// This package has NO external dependencies (no GPIO, HTTP, serial, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// DoorState represents the logical state of the mailbox door.
type DoorState string

const (
	DoorOpen   DoorState = "OPEN"
	DoorClosed DoorState = "CLOSED"
)

// Transition is a change of logical door state.
type Transition string

const (
	Opened Transition = "OPENED"
	Closed Transition = "CLOSED"
)

// Direction classifies a significant weight change.
type Direction string

const (
	Delivery Direction = "DELIVERY"
	Removal  Direction = "REMOVAL"
)

// EventType is the backend event vocabulary.
type EventType string

const (
	EventOpen       EventType = "open"
	EventClose      EventType = "close"
	EventDelivery   EventType = "delivery"
	EventRemoval    EventType = "removal"
	EventLowBattery EventType = "low_battery"
	EventHeartbeat  EventType = "heartbeat"
)

// Event is a detected occurrence to be reported to the backend.
// Weight and Battery are only meaningful for the event types that carry them.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Door      DoorState
	Weight    *float64 // grams; delivery/removal only
	Battery   *int     // percent; low_battery and heartbeat
}

// DoorEvent builds the open/close event for a door transition.
func DoorEvent(tr Transition, now time.Time) Event {
	if tr == Opened {
		return Event{Timestamp: now, Type: EventOpen, Door: DoorOpen}
	}
	return Event{Timestamp: now, Type: EventClose, Door: DoorClosed}
}

// WeightEvent builds the delivery/removal event for a classified weight change.
func WeightEvent(c WeightChange, door DoorState, now time.Time) Event {
	grams := c.Reading
	t := EventDelivery
	if c.Direction == Removal {
		t = EventRemoval
	}
	return Event{Timestamp: now, Type: t, Door: door, Weight: &grams}
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Open       int
	Close      int
	Delivery   int
	Removal    int
	LowBattery int
	Heartbeat  int
}

// Add increments the counter for the event type.
func (c *EventCounts) Add(t EventType) {
	switch t {
	case EventOpen:
		c.Open++
	case EventClose:
		c.Close++
	case EventDelivery:
		c.Delivery++
	case EventRemoval:
		c.Removal++
	case EventLowBattery:
		c.LowBattery++
	case EventHeartbeat:
		c.Heartbeat++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
