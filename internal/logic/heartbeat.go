package logic

import "time"

// Heartbeat tracks when the next periodic heartbeat is due and counts events
// since startup.
type Heartbeat struct {
	startTime time.Time
	last      time.Time
	counts    EventCounts
}

// NewHeartbeat creates a heartbeat clock starting at startTime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, last: startTime}
}

// Record counts a detected event.
func (h *Heartbeat) Record(t EventType) {
	h.counts.Add(t)
}

// Counts returns a copy of the event counts.
func (h *Heartbeat) Counts() EventCounts {
	return h.counts
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or is
// <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < interval {
		return nil
	}
	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Counts:    h.counts,
	}
}
