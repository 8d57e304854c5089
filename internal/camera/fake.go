package camera

import (
	"context"
	"sync"
	"time"
)

// FakeCapturer returns a fixed image and counts buffer releases.
type FakeCapturer struct {
	// Image is copied into every frame.
	Image []byte

	// Err, if set, is returned instead of a frame.
	Err error

	mu       sync.Mutex
	captures int
	releases int
}

// Capture returns a frame holding a copy of Image.
func (f *FakeCapturer) Capture(ctx context.Context) (*Frame, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	f.captures++
	f.mu.Unlock()
	data := append([]byte(nil), f.Image...)
	return NewFrame(data, time.Time{}, func() {
		f.mu.Lock()
		f.releases++
		f.mu.Unlock()
	}), nil
}

// Close is a no-op.
func (f *FakeCapturer) Close() error {
	return nil
}

// Captures returns how many frames were handed out.
func (f *FakeCapturer) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

// Releases returns how many frames were released.
func (f *FakeCapturer) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}
