package logic

// DoorMonitor maps raw reed-switch levels to a logical door state and reports
// changes. There is no internal debounce timer: the caller's poll interval is
// the debounce window, so it must exceed the contact-bounce duration.
type DoorMonitor struct {
	activeLow bool
	state     DoorState
	known     bool
}

// NewDoorMonitor creates a monitor. With activeLow set, a raw low level means
// the door is open (reed switch on a pull-up input).
func NewDoorMonitor(activeLow bool) *DoorMonitor {
	return &DoorMonitor{activeLow: activeLow}
}

// Prime records the boot-time level without reporting a transition.
func (m *DoorMonitor) Prime(rawHigh bool) {
	m.state = m.mapLevel(rawHigh)
	m.known = true
}

// Poll maps the raw level and returns a transition when it differs from the
// level mapped by the previous call. The first call on an unprimed monitor
// only records the state.
func (m *DoorMonitor) Poll(rawHigh bool) (Transition, bool) {
	next := m.mapLevel(rawHigh)
	if !m.known {
		m.Prime(rawHigh)
		return "", false
	}
	if next == m.state {
		return "", false
	}
	m.state = next
	if next == DoorOpen {
		return Opened, true
	}
	return Closed, true
}

// State returns the last mapped state, or "" before the first reading.
func (m *DoorMonitor) State() DoorState {
	return m.state
}

func (m *DoorMonitor) mapLevel(rawHigh bool) DoorState {
	if rawHigh != m.activeLow {
		return DoorOpen
	}
	return DoorClosed
}
