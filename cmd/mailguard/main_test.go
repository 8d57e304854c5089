package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/mailguard/internal/config"
	"github.com/sweeney/mailguard/internal/gpio"
	"github.com/sweeney/mailguard/internal/link"
	"github.com/sweeney/mailguard/internal/logic"
	"github.com/sweeney/mailguard/internal/monitor"
	"github.com/sweeney/mailguard/internal/mqtt"
	"github.com/sweeney/mailguard/internal/netinfo"
	"github.com/sweeney/mailguard/internal/notify"
	"github.com/sweeney/mailguard/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type countingStepper struct {
	times []time.Time
}

func (s *countingStepper) Step(_ context.Context, now time.Time) {
	s.times = append(s.times, now)
}

type countingNetwork struct {
	info  *netinfo.Info
	calls int
}

func (n *countingNetwork) Refresh() *netinfo.Info {
	n.calls++
	return n.info
}

type upConn struct{}

func (upConn) Connected() bool { return true }
func (upConn) Reconnect() bool { return true }

type recordingSender struct {
	events []logic.Event
}

func (r *recordingSender) Send(_ context.Context, ev logic.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type connStatus bool

func (c connStatus) IsConnected() bool { return bool(c) }

// runRunLoop drives runLoop for nTicks and then delivers signal.
func runRunLoop(t *testing.T, ctl stepper, pub mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, network networkSource, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(ctl, pub, mqttStatus, tracker, network, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopStepsOncePerTick(t *testing.T) {
	ctl := &countingStepper{}
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, ctl, pub, nil, nil, nil, fakeClock(start, 50*time.Millisecond), 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(ctl.times) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(ctl.times))
	}
	for i, got := range ctl.times {
		want := start.Add(time.Duration(i) * 50 * time.Millisecond)
		if !got.Equal(want) {
			t.Errorf("step %d at %v, want %v", i, got, want)
		}
	}
}

func TestRunLoopDoorOpen(t *testing.T) {
	cfg := config.Default()
	door := gpio.NewFakeDoor(true) // closed
	mainEnd, camEnd := link.Pipe()
	sender := &recordingSender{}
	clock := fakeClock(start, 100*time.Millisecond)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(start, statusConfig(cfg))

	ctl := monitor.New(cfg, monitor.Deps{
		Door:    door,
		Link:    mainEnd,
		Gate:    notify.NewGate(cfg.Notify.Cooldown.Duration, upConn{}, sender, func() time.Time { return start }),
		Mirror:  pub,
		Tracker: tracker,
	}, start)
	if err := ctl.Prime(start); err != nil {
		t.Fatalf("prime: %v", err)
	}
	door.Set(false)

	// Ticks at 0..2.4s; the door is polled at 2s.
	err := runRunLoop(t, ctl, pub, nil, tracker, nil, clock, 25, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 1 || pub.Events[0].Type != logic.EventOpen {
		t.Fatalf("expected one mirrored open event, got %+v", pub.Events)
	}
	if len(sender.events) != 1 || sender.events[0].Type != logic.EventOpen {
		t.Fatalf("expected one open event posted, got %+v", sender.events)
	}
	m, ok := camEnd.TryRecv()
	if !ok || m.Kind != link.Trigger {
		t.Fatalf("expected a trigger on the camera link, got %v %v", m, ok)
	}
	if got := tracker.Snapshot().Door; got != logic.DoorOpen {
		t.Errorf("tracker door: got %s, want OPEN", got)
	}
}

func TestRunLoopShutdown(t *testing.T) {
	tests := []struct {
		signal os.Signal
		reason string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			pub := mqtt.NewFakePublisher()
			tracker := status.NewTracker(start, status.Config{Serial: "ESP32_001"})

			err := runRunLoop(t, &countingStepper{}, pub, connStatus(true), tracker, nil, fakeClock(start, time.Second), 2, tt.signal)
			if err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}

			if len(pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
			}
			se := pub.SystemEvents[0]
			if se.Event != "SHUTDOWN" {
				t.Errorf("expected SHUTDOWN, got %q", se.Event)
			}
			if se.Reason != tt.reason {
				t.Errorf("expected reason %s, got %q", tt.reason, se.Reason)
			}
			if !se.Retained {
				t.Error("expected Retained=true for SHUTDOWN")
			}

			var payload status.StatusJSON
			if err := json.Unmarshal(se.RawPayload, &payload); err != nil {
				t.Fatalf("shutdown payload: %v", err)
			}
			if payload.Status.Reason != tt.reason {
				t.Errorf("payload reason: got %q, want %s", payload.Status.Reason, tt.reason)
			}
			if !payload.Status.MQTT.Connected {
				t.Error("expected mqtt.connected=true in shutdown payload")
			}
		})
	}
}

func TestRunLoopShutdownPublishError(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker gone")

	err := runRunLoop(t, &countingStepper{}, pub, nil, nil, nil, fakeClock(start, time.Second), 1, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop should not fail on publish error, got %v", err)
	}
}

func TestRunLoopWithoutBroker(t *testing.T) {
	ctl := &countingStepper{}

	err := runRunLoop(t, ctl, nil, nil, nil, nil, fakeClock(start, time.Second), 3, syscall.SIGINT)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(ctl.times) != 3 {
		t.Errorf("expected 3 steps, got %d", len(ctl.times))
	}
}

func TestRunLoopRefreshesNetwork(t *testing.T) {
	network := &countingNetwork{info: &netinfo.Info{Type: "wifi", Status: "connected", SSID: "Home"}}
	tracker := status.NewTracker(start, status.Config{})

	// Ticks at 0, 10, 20, 30, 40s: refreshed at 0 and 30.
	err := runRunLoop(t, &countingStepper{}, nil, nil, tracker, network, fakeClock(start, 10*time.Second), 5, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if network.calls != 2 {
		t.Errorf("expected 2 network refreshes, got %d", network.calls)
	}
	got := tracker.Snapshot().Network
	if got == nil || got.SSID != "Home" {
		t.Errorf("tracker network: got %+v", got)
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	tracker := status.NewTracker(start, status.Config{})

	err := runRunLoop(t, &countingStepper{}, mqtt.NewFakePublisher(), connStatus(true), tracker, nil, fakeClock(start, time.Second), 1, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report mqtt connected")
	}
}

func TestWriteState(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name  string
		raw   bool
		volts *gpio.FakeVoltage
		want  string
	}{
		{"closed", true, &gpio.FakeVoltage{Volts: 4.0}, "Door: CLOSED, Battery: 80% (4.00 V)\n"},
		{"open", false, &gpio.FakeVoltage{Volts: 4.5}, "Door: OPEN, Battery: 100% (4.50 V)\n"},
		{"battery unreadable", true, &gpio.FakeVoltage{Err: errors.New("no adc")}, "Door: CLOSED, Battery: unknown\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeState(&buf, cfg, gpio.NewFakeDoor(tt.raw), tt.volts); err != nil {
				t.Fatalf("writeState: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriteStateDoorError(t *testing.T) {
	door := gpio.NewFakeDoor(true)
	door.ReadError = errors.New("line busy")

	var buf bytes.Buffer
	err := writeState(&buf, config.Default(), door, &gpio.FakeVoltage{Volts: 4})
	if err == nil || !strings.Contains(err.Error(), "line busy") {
		t.Fatalf("expected door read error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://192.168.1.200:1883"
	cfg.Backend.RequireRegistration = true

	got := statusConfig(cfg)
	want := status.Config{
		Serial:           "ESP32_001",
		Firmware:         "1.2.0",
		DoorPollMs:       2000,
		WeightIntervalMs: 60000,
		PhotoCount:       3,
		PhotoIntervalMs:  3000,
		CooldownMs:       5000,
		HeartbeatMs:      600000,
		Backend:          "https://mail-guard-ten.vercel.app",
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":80",
		RequireRegistry:  true,
	}
	if got != want {
		t.Errorf("statusConfig:\n got %+v\nwant %+v", got, want)
	}
}
