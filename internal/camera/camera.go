// Package camera runs the camera controller: it answers each TRIGGER on the
// link by capturing one frame, uploading it, and replying SUCCESS or FAILURE.
package camera

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCaptureFailed means no frame was available.
var ErrCaptureFailed = errors.New("camera: capture failed")

// CaptureTimeout bounds the wait for a frame from the driver.
const CaptureTimeout = 2 * time.Second

// captureWait returns how long a capture may block: limit, or less when ctx
// expires sooner. An expired ctx is an error.
func captureWait(ctx context.Context, limit time.Duration, now time.Time) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		left := deadline.Sub(now)
		if left <= 0 {
			return 0, context.DeadlineExceeded
		}
		if left < limit {
			return left, nil
		}
	}
	return limit, nil
}

// Frame is one captured image. Data must not be used after Release.
type Frame struct {
	Data     []byte
	Captured time.Time

	release func()
	once    sync.Once
}

// NewFrame wraps data. release, if non-nil, runs on the first Release call.
func NewFrame(data []byte, captured time.Time, release func()) *Frame {
	return &Frame{Data: data, Captured: captured, release: release}
}

// Release returns the frame buffer to the driver. Extra calls do nothing.
func (f *Frame) Release() {
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
		f.Data = nil
	})
}

// Capturer grabs single frames.
type Capturer interface {
	Capture(ctx context.Context) (*Frame, error)
	Close() error
}
