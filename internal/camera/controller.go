package camera

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/mailguard/internal/link"
	"github.com/sweeney/mailguard/internal/notify"
	"github.com/sweeney/mailguard/internal/upload"
)

// Uploader posts one encoded frame.
type Uploader interface {
	Upload(ctx context.Context, meta upload.Metadata, image []byte) upload.Result
}

// Config holds the upload metadata that does not change per frame.
type Config struct {
	Serial    string
	EventType string
	FileType  string
}

// Stats counts handled triggers.
type Stats struct {
	Triggers   int
	Successes  int
	Failures   int
	LastStatus int
	LastError  string
}

// Controller serves TRIGGER commands from the main controller.
type Controller struct {
	link link.Link
	cam  Capturer
	up   Uploader
	conn notify.Connectivity
	cfg  Config
	now  func() time.Time

	stats Stats
}

// NewController creates a Controller. conn may be nil when connectivity is
// not tracked.
func NewController(l link.Link, cam Capturer, up Uploader, conn notify.Connectivity, cfg Config, now func() time.Time) *Controller {
	if cfg.EventType == "" {
		cfg.EventType = "delivery"
	}
	if cfg.FileType == "" {
		cfg.FileType = "image"
	}
	return &Controller{link: l, cam: cam, up: up, conn: conn, cfg: cfg, now: now}
}

// Step reads at most one message from the link and serves it. It reports
// whether a message was read.
func (c *Controller) Step(ctx context.Context) bool {
	m, ok := c.link.TryRecv()
	if !ok {
		return false
	}
	if m.Kind != link.Trigger {
		log.Printf("camera: ignoring unexpected %s", m)
		return true
	}

	c.stats.Triggers++
	success := c.serve(ctx, m)
	if success {
		c.stats.Successes++
	} else {
		c.stats.Failures++
	}

	reply := m.Reply(success)
	if err := c.link.Send(reply); err != nil {
		log.Printf("camera: failed to send %s: %v", reply, err)
	}
	return true
}

// serve captures and uploads one frame. The frame is released before
// returning on every path.
func (c *Controller) serve(ctx context.Context, m link.Message) bool {
	if c.conn != nil && !c.conn.Connected() {
		log.Printf("camera: offline, attempting reconnect")
		if !c.conn.Reconnect() {
			c.fail(upload.TransportFailure, "offline")
			return false
		}
	}

	frame, err := c.cam.Capture(ctx)
	if err != nil {
		log.Printf("camera: capture for %s failed: %v", m, err)
		c.fail(0, err.Error())
		return false
	}
	defer frame.Release()

	ts := frame.Captured
	if ts.IsZero() {
		ts = c.now()
	}
	meta := upload.Metadata{
		Serial:    c.cfg.Serial,
		EventType: c.cfg.EventType,
		FileType:  c.cfg.FileType,
		Timestamp: ts,
	}

	res := c.up.Upload(ctx, meta, frame.Data)
	c.stats.LastStatus = res.Status
	if !res.Success {
		log.Printf("camera: upload for %s failed (status %d): %v", m, res.Status, res.Err)
		c.stats.LastError = errString(res.Err)
		return false
	}
	log.Printf("camera: upload for %s ok (status %d, %d bytes)", m, res.Status, len(frame.Data))
	c.stats.LastError = ""
	return true
}

func (c *Controller) fail(status int, reason string) {
	c.stats.LastStatus = status
	c.stats.LastError = reason
}

// Stats returns the trigger counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
