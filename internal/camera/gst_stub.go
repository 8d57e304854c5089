//go:build !gstreamer

package camera

import (
	"context"
	"errors"
)

// GstCapturer is not available without the gstreamer build tag.
type GstCapturer struct{}

// NewGstCapturer returns an error when built without the gstreamer tag.
func NewGstCapturer(launch string) (*GstCapturer, error) {
	return nil, errors.New("camera: built without gstreamer support (use -tags gstreamer)")
}

// Capture is not implemented without the gstreamer build tag.
func (c *GstCapturer) Capture(ctx context.Context) (*Frame, error) {
	return nil, ErrCaptureFailed
}

// Close is not implemented without the gstreamer build tag.
func (c *GstCapturer) Close() error {
	return nil
}
