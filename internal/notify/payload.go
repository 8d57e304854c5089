// Package notify delivers mailbox events to the backend over HTTP, rate
// limited by a single cooldown gate shared by every event type.
package notify

import (
	"encoding/json"
	"time"

	"github.com/sweeney/mailguard/internal/logic"
)

// EventPayload is the JSON body of an event POST.
type EventPayload struct {
	SerialNumber    string    `json:"serial_number"`
	EventData       EventData `json:"event_data"`
	FirmwareVersion string    `json:"firmware_version"`
	Timestamp       string    `json:"timestamp"`
	BatteryLevel    *int      `json:"battery_level,omitempty"`
}

// EventData carries the type-specific fields.
type EventData struct {
	EventType     string   `json:"event_type"`
	ReedSensor    bool     `json:"reed_sensor"`
	MailboxStatus string   `json:"mailbox_status,omitempty"`
	WeightValue   *float64 `json:"weight_value,omitempty"`
}

// FormatEvent creates the JSON payload for an event.
func FormatEvent(serial, firmware string, event logic.Event) ([]byte, error) {
	data := EventData{
		EventType:   string(event.Type),
		ReedSensor:  event.Door == logic.DoorOpen,
		WeightValue: event.Weight,
	}
	switch event.Type {
	case logic.EventOpen:
		data.MailboxStatus = "opened"
	case logic.EventClose:
		data.MailboxStatus = "closed"
	}

	payload := EventPayload{
		SerialNumber:    serial,
		EventData:       data,
		FirmwareVersion: firmware,
		Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
		BatteryLevel:    event.Battery,
	}
	return json.Marshal(payload)
}
