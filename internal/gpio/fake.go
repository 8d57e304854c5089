package gpio

import "errors"

// FakeDoor is a test double that returns scripted reed-switch levels.
type FakeDoor struct {
	// Levels contains scripted raw levels. Each call to Read() consumes the
	// next one; the last level repeats once they are exhausted.
	Levels []bool

	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeDoor creates a FakeDoor with the given levels.
func NewFakeDoor(levels ...bool) *FakeDoor {
	return &FakeDoor{Levels: levels}
}

// Read returns the next scripted level.
func (f *FakeDoor) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}
	v := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a single steady level.
func (f *FakeDoor) Set(rawHigh bool) {
	f.Levels = []bool{rawHigh}
	f.index = 0
}

// Close marks the reader as closed.
func (f *FakeDoor) Close() error {
	f.Closed = true
	return nil
}

// FakeADC is a test double returning scripted raw conversions.
type FakeADC struct {
	// Values are returned in order; the last repeats.
	Values []int32

	// NotReady makes Ready() report false.
	NotReady bool

	// BusyPolls is how many Ready() calls report false after each read,
	// like an amplifier converting the next sample.
	BusyPolls int

	// ReadError, if set, will be returned by ReadRaw()
	ReadError error

	index int
	busy  int
	Reads int
	Polls int
}

// Ready reports false while NotReady is set or a conversion is pending.
func (f *FakeADC) Ready() bool {
	f.Polls++
	if f.NotReady {
		return false
	}
	if f.busy > 0 {
		f.busy--
		return false
	}
	return true
}

// ReadRaw returns the next scripted value.
func (f *FakeADC) ReadRaw() (int32, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no values configured")
	}
	f.Reads++
	f.busy = f.BusyPolls
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a single steady value.
func (f *FakeADC) Set(v int32) {
	f.Values = []int32{v}
	f.index = 0
}

// Close is a no-op.
func (f *FakeADC) Close() error {
	return nil
}

// FakeVoltage is a settable VoltageSource.
type FakeVoltage struct {
	Volts float64
	Err   error
}

// ReadVolts returns Volts or Err.
func (f *FakeVoltage) ReadVolts() (float64, error) {
	return f.Volts, f.Err
}
