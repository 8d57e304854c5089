package logic

import "time"

// Shot is a request for one photo within a sequence.
type Shot struct {
	Index int // 1-based
	Total int
	Time  time.Time
}

// SequenceState is a read-only view of the sequencer.
type SequenceState struct {
	Active    bool
	StartTime time.Time
	Requested int
	Total     int
}

// Sequencer schedules a burst of photos after the door opens. It is driven by
// Tick on every loop iteration. Consecutive shots are never closer than the
// interval, even when the loop runs late. At most one sequence is active at
// a time.
type Sequencer struct {
	total    int
	interval time.Duration

	active    bool
	start     time.Time
	last      time.Time
	requested int
}

// NewSequencer creates a sequencer taking total photos spaced by interval.
func NewSequencer(total int, interval time.Duration) *Sequencer {
	if total < 1 {
		total = 1
	}
	return &Sequencer{total: total, interval: interval}
}

// Start begins a sequence and returns the first shot, which the caller must
// trigger immediately. It returns false if a sequence is already active.
func (s *Sequencer) Start(now time.Time) (Shot, bool) {
	if s.active {
		return Shot{}, false
	}
	s.active = true
	s.start = now
	s.last = now
	s.requested = 1
	shot := Shot{Index: 1, Total: s.total, Time: now}
	if s.requested >= s.total {
		s.active = false
	}
	return shot, true
}

// Cancel stops the active sequence; no further shots are returned for it.
// It reports whether a sequence was active.
func (s *Sequencer) Cancel() bool {
	was := s.active
	s.active = false
	return was
}

// Tick returns the next shot once interval has passed since the previous
// one. At most one shot is returned per call.
func (s *Sequencer) Tick(now time.Time) (Shot, bool) {
	if !s.active || s.requested >= s.total {
		return Shot{}, false
	}
	if now.Sub(s.last) < s.interval {
		return Shot{}, false
	}
	s.last = now
	s.requested++
	if s.requested >= s.total {
		s.active = false
	}
	return Shot{Index: s.requested, Total: s.total, Time: now}, true
}

// Active reports whether a sequence is in progress.
func (s *Sequencer) Active() bool {
	return s.active
}

// State returns a snapshot of the sequencer.
func (s *Sequencer) State() SequenceState {
	return SequenceState{
		Active:    s.active,
		StartTime: s.start,
		Requested: s.requested,
		Total:     s.total,
	}
}
