package logic

import "math"

// BatteryMonitor maps pack voltage to a charge percentage and latches the
// low-battery condition so it is reported once per discharge.
type BatteryMonitor struct {
	minVolts  float64
	maxVolts  float64
	threshold int

	level   int
	known   bool
	latched bool
}

// NewBatteryMonitor creates a monitor mapping [minVolts, maxVolts] linearly to
// 0..100 percent. A level below threshold is low.
func NewBatteryMonitor(minVolts, maxVolts float64, threshold int) *BatteryMonitor {
	return &BatteryMonitor{minVolts: minVolts, maxVolts: maxVolts, threshold: threshold}
}

// Percent converts a voltage to a clamped percentage.
func (b *BatteryMonitor) Percent(volts float64) int {
	if b.maxVolts <= b.minVolts {
		return 0
	}
	p := int(math.Round((volts - b.minVolts) * 100 / (b.maxVolts - b.minVolts)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Update records a new voltage sample. It returns true when the level has
// just dropped below the threshold; it re-arms once the level recovers.
func (b *BatteryMonitor) Update(volts float64) (int, bool) {
	b.level = b.Percent(volts)
	b.known = true
	if b.level >= b.threshold {
		b.latched = false
		return b.level, false
	}
	if b.latched {
		return b.level, false
	}
	b.latched = true
	return b.level, true
}

// Level returns the last computed percentage and whether one exists.
func (b *BatteryMonitor) Level() (int, bool) {
	return b.level, b.known
}
