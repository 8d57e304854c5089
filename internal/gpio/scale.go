package gpio

import (
	"errors"
	"fmt"
	"time"
)

// An HX711 holds DOUT high for one conversion period (100 ms at 10 SPS)
// after every read.
const (
	readyTimeout = 500 * time.Millisecond
	readyPoll    = time.Millisecond
)

// ErrNotReady is returned when the amplifier has no conversion available.
var ErrNotReady = errors.New("gpio: load cell not ready")

// Scale converts raw ADC counts to grams using a tare offset and a
// calibration factor (counts per gram). It satisfies logic.Scale.
type Scale struct {
	adc         ADC
	calibration float64
	offset      float64

	timeout time.Duration
	sleep   func(time.Duration)
}

// NewScale wraps adc. A zero calibration is treated as 1.
func NewScale(adc ADC, calibration float64) *Scale {
	if calibration == 0 {
		calibration = 1
	}
	return &Scale{adc: adc, calibration: calibration, timeout: readyTimeout, sleep: time.Sleep}
}

// Ready reports whether a reading can be taken now.
func (s *Scale) Ready() bool {
	return s.adc.Ready()
}

// Tare averages samples conversions and uses the result as the zero point.
func (s *Scale) Tare(samples int) error {
	avg, err := s.average(samples)
	if err != nil {
		return fmt.Errorf("tare: %w", err)
	}
	s.offset = avg
	return nil
}

// ReadGrams averages samples conversions and returns the calibrated mass.
func (s *Scale) ReadGrams(samples int) (float64, error) {
	avg, err := s.average(samples)
	if err != nil {
		return 0, err
	}
	return (avg - s.offset) / s.calibration, nil
}

// Offset returns the tare point in raw counts.
func (s *Scale) Offset() float64 {
	return s.offset
}

func (s *Scale) average(samples int) (float64, error) {
	if samples < 1 {
		samples = 1
	}
	var sum float64
	for i := 0; i < samples; i++ {
		if !s.waitReady() {
			return 0, fmt.Errorf("sample %d: %w", i, ErrNotReady)
		}
		v, err := s.adc.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("read sample %d: %w", i, err)
		}
		sum += float64(v)
	}
	return sum / float64(samples), nil
}

// waitReady polls the amplifier until a conversion is waiting or the
// timeout elapses.
func (s *Scale) waitReady() bool {
	for waited := time.Duration(0); ; waited += readyPoll {
		if s.adc.Ready() {
			return true
		}
		if waited >= s.timeout {
			return false
		}
		s.sleep(readyPoll)
	}
}

// signExtend24 interprets the low 24 bits of v as two's complement.
func signExtend24(v uint32) int32 {
	v &= 0xFFFFFF
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}
