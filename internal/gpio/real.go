//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealDoor reads the reed switch from actual hardware using the Linux GPIO
// character device.
type RealDoor struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealDoor requests pin on chip as an input with pull-up, so a reed switch
// to ground reads low when closed against its magnet.
func NewRealDoor(chipName string, pin int) (*RealDoor, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request door pin %d: %w", pin, err)
	}

	return &RealDoor{chip: chip, line: line}, nil
}

// Read returns the raw level of the door pin.
func (r *RealDoor) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read door pin: %w", err)
	}
	return v == 1, nil
}

// Close releases GPIO resources, leaving the pin as a plain input.
func (r *RealDoor) Close() error {
	var errs []error
	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure door pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close door pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HX711 bit-bangs the HX711 two-wire interface: DOUT low means a conversion
// is ready, then 24 clock pulses shift the value out MSB first. One extra
// pulse selects channel A at gain 128 for the next conversion.
type HX711 struct {
	chip *gpiocdev.Chip
	dout *gpiocdev.Line
	sck  *gpiocdev.Line
}

// NewHX711 requests the data pin as input and the clock pin as output low.
func NewHX711(chipName string, dataPin, clockPin int) (*HX711, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	dout, err := chip.RequestLine(dataPin, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request hx711 data pin %d: %w", dataPin, err)
	}

	sck, err := chip.RequestLine(clockPin, gpiocdev.AsOutput(0))
	if err != nil {
		dout.Close()
		chip.Close()
		return nil, fmt.Errorf("request hx711 clock pin %d: %w", clockPin, err)
	}

	return &HX711{chip: chip, dout: dout, sck: sck}, nil
}

// Ready reports whether DOUT is low.
func (h *HX711) Ready() bool {
	v, err := h.dout.Value()
	return err == nil && v == 0
}

// ReadRaw shifts out one conversion. The caller checks Ready first.
func (h *HX711) ReadRaw() (int32, error) {
	var v uint32
	for i := 0; i < 24; i++ {
		if err := h.pulse(); err != nil {
			return 0, err
		}
		bit, err := h.dout.Value()
		if err != nil {
			return 0, fmt.Errorf("read hx711 data: %w", err)
		}
		v = v<<1 | uint32(bit&1)
	}
	if err := h.pulse(); err != nil {
		return 0, err
	}
	return signExtend24(v), nil
}

func (h *HX711) pulse() error {
	if err := h.sck.SetValue(1); err != nil {
		return fmt.Errorf("hx711 clock high: %w", err)
	}
	if err := h.sck.SetValue(0); err != nil {
		return fmt.Errorf("hx711 clock low: %w", err)
	}
	return nil
}

// Close powers the amplifier down (clock held high) and releases the lines.
func (h *HX711) Close() error {
	var errs []error
	if h.sck != nil {
		if err := h.sck.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("hx711 power down: %w", err))
		}
		if err := h.sck.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close clock pin: %w", err))
		}
	}
	if h.dout != nil {
		if err := h.dout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data pin: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
