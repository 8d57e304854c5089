package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Serial        string           `json:"serial_number"`
	Door          string           `json:"door"`
	Ready         bool             `json:"ready"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	Weight        WeightJSON       `json:"weight"`
	Sequence      SequenceJSON     `json:"photo_sequence"`
	Battery       *int             `json:"battery_level,omitempty"`
	Registration  RegistrationJSON `json:"registration"`
	Camera        CameraJSON       `json:"camera"`
	LastNotify    string           `json:"last_notification,omitempty"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Counts        CountsJSON       `json:"event_counts"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// WeightJSON reports the load-cell baseline.
type WeightJSON struct {
	BaselineGrams float64 `json:"baseline_g"`
}

// SequenceJSON reports the photo sequencer.
type SequenceJSON struct {
	Active    bool   `json:"active"`
	Requested int    `json:"requested"`
	Total     int    `json:"total"`
	StartTime string `json:"start_time,omitempty"`
}

// RegistrationJSON reports the backend identity.
type RegistrationJSON struct {
	Required   bool   `json:"required"`
	Registered bool   `json:"registered"`
	DeviceID   string `json:"device_id,omitempty"`
	ClerkID    string `json:"clerk_id,omitempty"`
}

// CameraJSON reports TRIGGER outcomes.
type CameraJSON struct {
	Triggers    int `json:"triggers"`
	Successes   int `json:"successes"`
	Failures    int `json:"failures"`
	Lost        int `json:"lost"`
	Unknown     int `json:"unknown"`
	Outstanding int `json:"outstanding"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Open       int `json:"open"`
	Close      int `json:"close"`
	Delivery   int `json:"delivery"`
	Removal    int `json:"removal"`
	LowBattery int `json:"low_battery"`
	Heartbeat  int `json:"heartbeat"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Firmware         string `json:"firmware_version"`
	DoorPollMs       int64  `json:"door_poll_ms"`
	WeightIntervalMs int64  `json:"weight_interval_ms"`
	PhotoCount       int    `json:"photo_count"`
	PhotoIntervalMs  int64  `json:"photo_interval_ms"`
	CooldownMs       int64  `json:"cooldown_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Backend          string `json:"backend"`
	Broker           string `json:"broker,omitempty"`
	HTTPAddr         string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	door := string(snap.Door)
	if door == "" {
		door = "UNKNOWN"
	}
	cfg := snap.Config

	inner := StatusInner{
		Serial:        cfg.Serial,
		Door:          door,
		Ready:         snap.Door != "",
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		Weight:        WeightJSON{BaselineGrams: snap.Baseline},
		Sequence: SequenceJSON{
			Active:    snap.Sequence.Active,
			Requested: snap.Sequence.Requested,
			Total:     snap.Sequence.Total,
		},
		Registration: RegistrationJSON{
			Required:   cfg.RequireRegistry,
			Registered: snap.Registration.Registered,
			DeviceID:   snap.Registration.DeviceID,
			ClerkID:    snap.Registration.ClerkID,
		},
		Camera:     CameraJSON(snap.Camera),
		LastNotify: formatTime(snap.LastNotify),
		MQTT:       MQTTStatus{Connected: snap.MQTTConnected, Broker: cfg.Broker},
		Counts: CountsJSON{
			Open:       snap.Counts.Open,
			Close:      snap.Counts.Close,
			Delivery:   snap.Counts.Delivery,
			Removal:    snap.Counts.Removal,
			LowBattery: snap.Counts.LowBattery,
			Heartbeat:  snap.Counts.Heartbeat,
		},
		Config: ConfigJSON{
			Firmware:         cfg.Firmware,
			DoorPollMs:       cfg.DoorPollMs,
			WeightIntervalMs: cfg.WeightIntervalMs,
			PhotoCount:       cfg.PhotoCount,
			PhotoIntervalMs:  cfg.PhotoIntervalMs,
			CooldownMs:       cfg.CooldownMs,
			HeartbeatMs:      cfg.HeartbeatMs,
			Backend:          cfg.Backend,
			Broker:           cfg.Broker,
			HTTPAddr:         cfg.HTTPAddr,
		},
	}
	if snap.Sequence.Active {
		inner.Sequence.StartTime = formatTime(snap.Sequence.StartTime)
	}
	if snap.BatteryKnown {
		level := snap.Battery
		inner.Battery = &level
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
