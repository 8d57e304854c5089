// Package monitor is the main controller: one cooperative Step drives the
// door, weight and battery sensors, the photo sequencer, the notification
// gate and the camera link.
package monitor

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/sweeney/mailguard/internal/config"
	"github.com/sweeney/mailguard/internal/gpio"
	"github.com/sweeney/mailguard/internal/link"
	"github.com/sweeney/mailguard/internal/logic"
	"github.com/sweeney/mailguard/internal/mqtt"
	"github.com/sweeney/mailguard/internal/notify"
	"github.com/sweeney/mailguard/internal/status"
)

// Deps are the collaborators of a Controller. Scale, Volts, Registry,
// Signal, Mirror and Tracker may be nil.
type Deps struct {
	Door     gpio.DoorReader
	Scale    logic.Scale
	Volts    gpio.VoltageSource
	Link     link.Link
	Gate     *notify.Gate
	Registry *notify.Registry
	Signal   func() int
	Mirror   mqtt.Publisher
	Tracker  *status.Tracker
}

// Controller owns all main-controller state. It is not safe for concurrent
// use; the daemon calls Step from a single loop.
type Controller struct {
	cfg  config.Config
	deps Deps

	door      *logic.DoorMonitor
	weight    *logic.WeightDetector
	seq       *logic.Sequencer
	battery   *logic.BatteryMonitor
	heartbeat *logic.Heartbeat
	pending   *link.Pending
	triggers  int

	nextDoor    time.Time
	nextWeight  time.Time
	nextBattery time.Time
	nextHealth  time.Time
}

// New creates a Controller. start is the boot time used for uptime and the
// first heartbeat.
func New(cfg config.Config, deps Deps, start time.Time) *Controller {
	return &Controller{
		cfg:       cfg,
		deps:      deps,
		door:      logic.NewDoorMonitor(cfg.Door.ActiveLow),
		weight:    logic.NewWeightDetector(cfg.Weight.Threshold, cfg.Weight.Samples, 0),
		seq:       logic.NewSequencer(cfg.Photo.Count, cfg.Photo.Interval.Duration),
		battery:   logic.NewBatteryMonitor(cfg.Battery.MinVolts, cfg.Battery.MaxVolts, cfg.Battery.LowThreshold),
		heartbeat: logic.NewHeartbeat(start),
		pending:   link.NewPending(cfg.Serial.ReplyTimeout.Duration),
	}
}

// Prime records the boot-time door level without reporting it and schedules
// the periodic checks. Battery and registration are checked on the first Step.
func (c *Controller) Prime(now time.Time) error {
	raw, err := c.deps.Door.Read()
	if err != nil {
		return err
	}
	c.door.Prime(raw)
	log.Printf("monitor: door initially %s", c.door.State())

	c.nextDoor = now.Add(c.cfg.Door.PollInterval.Duration)
	c.nextWeight = now.Add(c.cfg.Weight.Interval.Duration)
	c.nextBattery = now
	c.updateTracker()
	return nil
}

// Step runs one iteration of the control loop at time now. Blocking I/O
// (HTTP posts, serial writes) happens inline.
func (c *Controller) Step(ctx context.Context, now time.Time) {
	c.checkRegistration(ctx, now)

	if !now.Before(c.nextDoor) {
		c.nextDoor = now.Add(c.cfg.Door.PollInterval.Duration)
		c.pollDoor(ctx, now)
	}

	if c.deps.Scale != nil && !now.Before(c.nextWeight) {
		c.nextWeight = now.Add(c.cfg.Weight.Interval.Duration)
		if change, ok := c.weight.Check(c.deps.Scale); ok {
			log.Printf("monitor: %s of %.1f g (now %.1f g)", change.Direction, change.Delta, change.Reading)
			c.emit(ctx, logic.WeightEvent(change, c.door.State(), now))
		}
	}

	if c.deps.Volts != nil && !now.Before(c.nextBattery) {
		c.nextBattery = now.Add(c.cfg.Battery.Interval.Duration)
		c.checkBattery(ctx, now)
	}

	if hb := c.heartbeat.Check(now, c.cfg.Heartbeat.Duration); hb != nil {
		c.sendHeartbeat(ctx, hb)
	}

	c.reportHealth(ctx, now)

	if shot, ok := c.seq.Tick(now); ok {
		c.trigger(shot, now)
	}

	c.drainReplies()
	c.pending.Expire(now)
	c.updateTracker()
}

func (c *Controller) pollDoor(ctx context.Context, now time.Time) {
	raw, err := c.deps.Door.Read()
	if err != nil {
		log.Printf("monitor: door read error: %v", err)
		return
	}
	tr, ok := c.door.Poll(raw)
	if !ok {
		return
	}
	log.Printf("monitor: door %s", tr)

	switch tr {
	case logic.Opened:
		if shot, ok := c.seq.Start(now); ok {
			c.trigger(shot, now)
		}
	case logic.Closed:
		if c.seq.Cancel() {
			log.Printf("monitor: photo sequence cancelled by door close")
		}
	}
	c.emit(ctx, logic.DoorEvent(tr, now))
}

func (c *Controller) trigger(shot logic.Shot, now time.Time) {
	m := link.NewTrigger()
	if c.cfg.Serial.Legacy {
		m.ID = ""
	}
	c.triggers++
	if err := c.deps.Link.Send(m); err != nil {
		log.Printf("monitor: photo %d/%d trigger failed: %v", shot.Index, shot.Total, err)
		return
	}
	c.pending.Sent(m, now)
	log.Printf("monitor: photo %d/%d requested %s", shot.Index, shot.Total, m)
}

func (c *Controller) drainReplies() {
	for {
		m, ok := c.deps.Link.TryRecv()
		if !ok {
			return
		}
		if m.Kind == link.Trigger {
			log.Printf("monitor: ignoring %s from camera", m)
			continue
		}
		if c.pending.Resolve(m) {
			log.Printf("monitor: camera replied %s", m)
		} else {
			log.Printf("monitor: unmatched camera reply %s", m)
		}
	}
}

func (c *Controller) checkBattery(ctx context.Context, now time.Time) {
	volts, err := c.deps.Volts.ReadVolts()
	if err != nil {
		log.Printf("monitor: battery read error: %v", err)
		return
	}
	level, low := c.battery.Update(volts)
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetBattery(level)
	}
	if !low {
		return
	}
	log.Printf("monitor: battery low: %d%% (%.2f V)", level, volts)
	c.emit(ctx, logic.Event{Timestamp: now, Type: logic.EventLowBattery, Door: c.door.State(), Battery: &level})
}

func (c *Controller) sendHeartbeat(ctx context.Context, hb *logic.HeartbeatData) {
	log.Printf("monitor: heartbeat: uptime=%v open=%d close=%d delivery=%d removal=%d",
		hb.Uptime.Truncate(time.Second), hb.Counts.Open, hb.Counts.Close, hb.Counts.Delivery, hb.Counts.Removal)

	ev := logic.Event{Timestamp: hb.Timestamp, Type: logic.EventHeartbeat, Door: c.door.State()}
	if level, ok := c.battery.Level(); ok {
		ev.Battery = &level
	}
	c.emit(ctx, ev)

	if c.deps.Mirror == nil {
		return
	}
	sys := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
	if c.deps.Tracker != nil {
		c.updateTracker()
		sys.RawPayload = status.FormatStatusEvent(c.deps.Tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := c.deps.Mirror.PublishSystem(sys); err != nil && !errors.Is(err, mqtt.ErrBuffered) {
		log.Printf("monitor: heartbeat publish error: %v", err)
	}
}

func (c *Controller) checkRegistration(ctx context.Context, now time.Time) {
	r := c.deps.Registry
	if r == nil || !r.RetryDue(now) {
		return
	}
	if err := r.Lookup(ctx, now); err != nil {
		log.Printf("monitor: device lookup failed, unregistered: %v", err)
		return
	}
	info, _ := r.Info()
	log.Printf("monitor: registered as device %d (clerk %s)", info.DeviceID, info.ClerkID)
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetRegistration(status.Registration{
			Registered: true,
			DeviceID:   strconv.Itoa(info.DeviceID),
			ClerkID:    info.ClerkID,
		})
	}
}

func (c *Controller) reportHealth(ctx context.Context, now time.Time) {
	r := c.deps.Registry
	if r == nil || !r.Registered() || now.Before(c.nextHealth) {
		return
	}
	c.nextHealth = now.Add(c.cfg.Backend.HealthInterval.Duration)

	level, _ := c.battery.Level()
	signal := 0
	if c.deps.Signal != nil {
		signal = c.deps.Signal()
	}
	if err := r.ReportHealth(ctx, level, signal); err != nil {
		log.Printf("monitor: health report failed: %v", err)
		return
	}
	log.Printf("monitor: health reported (battery %d%%, signal %d dBm)", level, signal)
}

// emit counts an event, mirrors it and passes it through the gate.
func (c *Controller) emit(ctx context.Context, ev logic.Event) {
	c.heartbeat.Record(ev.Type)

	if c.deps.Mirror != nil {
		if err := c.deps.Mirror.Publish(ev); err != nil && !errors.Is(err, mqtt.ErrBuffered) {
			log.Printf("monitor: mqtt publish error: %v", err)
		}
	}

	c.deps.Gate.TrySend(ctx, ev)
	if c.deps.Tracker != nil {
		if at, ok := c.deps.Gate.LastSent(); ok {
			c.deps.Tracker.SetLastNotify(at)
		}
	}
}

func (c *Controller) updateTracker() {
	t := c.deps.Tracker
	if t == nil {
		return
	}
	t.Update(c.door.State(), c.weight.Baseline(), c.seq.State(), c.heartbeat.Counts())
	t.SetCamera(c.CameraStats())
}

// CameraStats summarizes trigger traffic.
func (c *Controller) CameraStats() status.Camera {
	return status.Camera{
		Triggers:    c.triggers,
		Successes:   c.pending.Successes,
		Failures:    c.pending.Failures,
		Lost:        c.pending.Lost,
		Unknown:     c.pending.Unknown,
		Outstanding: c.pending.Outstanding(),
	}
}

// Door returns the current logical door state.
func (c *Controller) Door() logic.DoorState {
	return c.door.State()
}

// Sequence returns the photo sequencer state.
func (c *Controller) Sequence() logic.SequenceState {
	return c.seq.State()
}

// Counts returns detected events by type since start.
func (c *Controller) Counts() logic.EventCounts {
	return c.heartbeat.Counts()
}
