// Package status provides a thread-safe status tracker for the mailguard daemon.
// It is read by the HTTP status page, the websocket feed and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/mailguard/internal/logic"
	"github.com/sweeney/mailguard/internal/netinfo"
)

// Config contains daemon configuration for display.
type Config struct {
	Serial           string
	Firmware         string
	DoorPollMs       int64
	WeightIntervalMs int64
	PhotoCount       int
	PhotoIntervalMs  int64
	CooldownMs       int64
	HeartbeatMs      int64
	Backend          string
	Broker           string
	HTTPAddr         string
	RequireRegistry  bool
}

// Registration is the backend identity of the device.
type Registration struct {
	Registered bool
	DeviceID   string
	ClerkID    string
}

// Camera summarizes TRIGGER traffic with the camera controller.
type Camera struct {
	Triggers    int
	Successes   int
	Failures    int
	Lost        int
	Unknown     int
	Outstanding int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Door          logic.DoorState
	Baseline      float64
	Sequence      logic.SequenceState
	Counts        logic.EventCounts
	Battery       int
	BatteryKnown  bool
	Registration  Registration
	Camera        Camera
	LastNotify    time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *netinfo.Info
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. Every change that
// alters the snapshot closes the channel returned by Changed.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Update sets the sensor-derived state. Called from the control loop on
// every step.
func (t *Tracker) Update(door logic.DoorState, baseline float64, seq logic.SequenceState, counts logic.EventCounts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.snap
	if s.Door == door && s.Baseline == baseline && s.Sequence == seq && s.Counts == counts {
		return
	}
	s.Door, s.Baseline, s.Sequence, s.Counts = door, baseline, seq, counts
	t.bump()
}

// SetBattery records the last battery level in percent.
func (t *Tracker) SetBattery(level int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.BatteryKnown && t.snap.Battery == level {
		return
	}
	t.snap.Battery, t.snap.BatteryKnown = level, true
	t.bump()
}

// SetRegistration records the backend identity.
func (t *Tracker) SetRegistration(r Registration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Registration == r {
		return
	}
	t.snap.Registration = r
	t.bump()
}

// SetCamera records camera trigger counters.
func (t *Tracker) SetCamera(c Camera) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Camera == c {
		return
	}
	t.snap.Camera = c
	t.bump()
}

// SetLastNotify records the time of the last attempted backend event POST.
func (t *Tracker) SetLastNotify(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.LastNotify.Equal(at) {
		return
	}
	t.snap.LastNotify = at
	t.bump()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.MQTTConnected == connected {
		return
	}
	t.snap.MQTTConnected = connected
	t.bump()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *netinfo.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sameNetwork(t.snap.Network, info) {
		return
	}
	t.snap.Network = info
	t.bump()
}

// Changed returns a channel that is closed on the next state change.
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// bump wakes every waiter. Caller holds the write lock.
func (t *Tracker) bump() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func sameNetwork(a, b *netinfo.Info) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
