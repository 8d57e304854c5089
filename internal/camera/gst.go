//go:build gstreamer

package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GstCapturer pulls JPEG frames from a GStreamer pipeline ending in an
// appsink named "sink".
type GstCapturer struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
	timeout  time.Duration
	pool     sync.Pool
}

// NewGstCapturer parses launch and sets the pipeline playing.
func NewGstCapturer(launch string) (*GstCapturer, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, fmt.Errorf("pipeline has no appsink named sink: %w", err)
	}
	sink := app.SinkFromElement(elem)
	sink.SetProperty("max-buffers", uint(1))
	sink.SetProperty("drop", true)
	sink.SetProperty("sync", false)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}
	log.Printf("camera: pipeline playing: %s", launch)
	return &GstCapturer{pipeline: pipeline, sink: sink, timeout: CaptureTimeout}, nil
}

// Capture copies the newest sample into a pooled buffer. Release returns it.
// A stalled source yields ErrCaptureFailed once the wait runs out.
func (c *GstCapturer) Capture(ctx context.Context) (*Frame, error) {
	wait, err := captureWait(ctx, c.timeout, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	sample := c.sink.TryPullSample(wait)
	if sample == nil {
		return nil, fmt.Errorf("%w: no frame within %v", ErrCaptureFailed, wait)
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, ErrCaptureFailed
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return nil, ErrCaptureFailed
	}
	buf := c.get(len(data))
	copy(buf, data)
	buffer.Unmap()

	return NewFrame(buf, time.Now(), func() { c.pool.Put(buf[:0]) }), nil
}

func (c *GstCapturer) get(n int) []byte {
	if v, ok := c.pool.Get().([]byte); ok && cap(v) >= n {
		return v[:n]
	}
	return make([]byte, n)
}

// Close stops the pipeline and releases its resources.
func (c *GstCapturer) Close() error {
	if err := c.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	return nil
}
