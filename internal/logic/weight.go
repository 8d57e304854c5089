package logic

import "math"

// Scale provides stabilized load-cell readings in grams.
// Averaging the raw samples is the scale's job.
type Scale interface {
	Ready() bool
	ReadGrams(samples int) (float64, error)
}

// WeightChange is a classified weight delta.
type WeightChange struct {
	Direction Direction
	Delta     float64 // reading - previous baseline
	Reading   float64
}

// WeightDetector classifies readings against a baseline that moves only when
// a change is confirmed.
type WeightDetector struct {
	threshold float64
	samples   int
	baseline  float64
}

// NewWeightDetector creates a detector starting from the given baseline
// (normally 0 after the scale has been tared).
func NewWeightDetector(threshold float64, samples int, baseline float64) *WeightDetector {
	if samples < 1 {
		samples = 1
	}
	return &WeightDetector{threshold: threshold, samples: samples, baseline: baseline}
}

// Check reads the scale and returns a change when |reading - baseline| reaches
// the threshold. A scale that is not ready or fails to read yields no change
// and leaves the baseline untouched.
func (d *WeightDetector) Check(s Scale) (WeightChange, bool) {
	if !s.Ready() {
		return WeightChange{}, false
	}
	reading, err := s.ReadGrams(d.samples)
	if err != nil {
		return WeightChange{}, false
	}
	return d.Classify(reading)
}

// Classify applies the threshold rule to a single reading.
func (d *WeightDetector) Classify(reading float64) (WeightChange, bool) {
	delta := reading - d.baseline
	if math.IsNaN(delta) || math.Abs(delta) < d.threshold || delta == 0 {
		return WeightChange{}, false
	}
	dir := Delivery
	if delta < 0 {
		dir = Removal
	}
	d.baseline = reading
	return WeightChange{Direction: dir, Delta: delta, Reading: reading}, true
}

// Baseline returns the current reference mass, for diagnostics only.
func (d *WeightDetector) Baseline() float64 {
	return d.baseline
}
