package gpio

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SysfsVoltage reads an IIO ADC channel such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw and scales the raw count
// to pack volts.
type SysfsVoltage struct {
	Path  string
	Scale float64 // volts per count, including the divider ratio
}

// ReadVolts returns the scaled reading.
func (s SysfsVoltage) ReadVolts() (float64, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, fmt.Errorf("read battery adc: %w", err)
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse battery adc %q: %w", strings.TrimSpace(string(data)), err)
	}
	return raw * s.Scale, nil
}
