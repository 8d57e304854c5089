// Package gpio provides the mailbox sensors with hardware abstraction:
// the door reed switch, the HX711 load-cell amplifier and the battery
// voltage divider. The real implementations use the Linux GPIO character
// device and sysfs. The fakes allow testing without hardware.
package gpio

// DoorReader reads the reed-switch input.
type DoorReader interface {
	// Read returns the raw electrical level of the door pin.
	// Mapping the level to OPEN/CLOSED is the caller's job.
	Read() (rawHigh bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// ADC reads raw conversions from a load-cell amplifier.
type ADC interface {
	// Ready reports whether a conversion is waiting.
	Ready() bool

	// ReadRaw returns one signed 24-bit conversion.
	ReadRaw() (int32, error)

	Close() error
}

// VoltageSource reads the battery pack voltage.
type VoltageSource interface {
	ReadVolts() (float64, error)
}

// Pin defaults (BCM numbering)
const (
	PinDoor      = 2
	PinHX711Data = 16
	PinHX711Clk  = 4
)
