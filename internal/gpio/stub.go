//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealDoor is not available on non-Linux platforms.
type RealDoor struct{}

// NewRealDoor returns an error on non-Linux platforms.
func NewRealDoor(chipName string, pin int) (*RealDoor, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealDoor) Read() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealDoor) Close() error {
	return nil
}

// HX711 is not available on non-Linux platforms.
type HX711 struct{}

// NewHX711 returns an error on non-Linux platforms.
func NewHX711(chipName string, dataPin, clockPin int) (*HX711, error) {
	return nil, errUnsupported
}

// Ready always reports false on non-Linux platforms.
func (h *HX711) Ready() bool {
	return false
}

// ReadRaw is not implemented on non-Linux platforms.
func (h *HX711) ReadRaw() (int32, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (h *HX711) Close() error {
	return nil
}
