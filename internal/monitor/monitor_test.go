package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/mailguard/internal/config"
	"github.com/sweeney/mailguard/internal/gpio"
	"github.com/sweeney/mailguard/internal/link"
	"github.com/sweeney/mailguard/internal/logic"
	"github.com/sweeney/mailguard/internal/mqtt"
	"github.com/sweeney/mailguard/internal/notify"
	"github.com/sweeney/mailguard/internal/status"
)

const (
	rawClosed = true // active-low reed switch: high means closed
	rawOpen   = false
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// clockedLink records the time of every send.
type clockedLink struct {
	*link.Fake
	clk   *clock
	times []time.Time
}

func (l *clockedLink) Send(m link.Message) error {
	l.times = append(l.times, l.clk.t)
	return l.Fake.Send(m)
}

type sent struct {
	at    time.Time
	event logic.Event
}

type fakeSender struct {
	clk    *clock
	events []sent
}

func (s *fakeSender) Send(ctx context.Context, ev logic.Event) error {
	s.events = append(s.events, sent{at: s.clk.t, event: ev})
	return nil
}

func (s *fakeSender) types() []logic.EventType {
	var out []logic.EventType
	for _, e := range s.events {
		out = append(out, e.event.Type)
	}
	return out
}

type fakeConn struct{ up bool }

func (f *fakeConn) Connected() bool { return f.up }
func (f *fakeConn) Reconnect() bool { return f.up }

type harness struct {
	clk     *clock
	start   time.Time
	door    *gpio.FakeDoor
	adc     *gpio.FakeADC
	volts   *gpio.FakeVoltage
	link    *clockedLink
	cam     *link.Fake
	sender  *fakeSender
	mirror  *mqtt.FakePublisher
	tracker *status.Tracker
	ctl     *Controller
}

func setup(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := &clock{t: start}
	mainEnd, cam := link.Pipe()
	h := &harness{
		clk:     clk,
		start:   start,
		door:    gpio.NewFakeDoor(rawClosed),
		adc:     &gpio.FakeADC{Values: []int32{0}},
		volts:   &gpio.FakeVoltage{Volts: 4.0},
		link:    &clockedLink{Fake: mainEnd, clk: clk},
		cam:     cam,
		sender:  &fakeSender{clk: clk},
		mirror:  mqtt.NewFakePublisher(),
		tracker: status.NewTracker(start, status.Config{}),
	}
	gate := notify.NewGate(cfg.Notify.Cooldown.Duration, &fakeConn{up: true}, h.sender, clk.now)
	h.ctl = New(cfg, Deps{
		Door:    h.door,
		Scale:   gpio.NewScale(h.adc, 1),
		Volts:   h.volts,
		Link:    h.link,
		Gate:    gate,
		Mirror:  h.mirror,
		Tracker: h.tracker,
	}, start)
	require.NoError(t, h.ctl.Prime(start))
	return h
}

// run steps the controller every 100ms until elapsed d from start, calling
// at (if non-nil) before each step.
func (h *harness) run(d time.Duration, at func(elapsed time.Duration)) {
	for h.clk.t.Sub(h.start) < d {
		h.clk.t = h.clk.t.Add(100 * time.Millisecond)
		if at != nil {
			at(h.clk.t.Sub(h.start))
		}
		h.ctl.Step(context.Background(), h.clk.t)
	}
}

func TestDoorOpenSendsOneEventAndThreeTriggers(t *testing.T) {
	h := setup(t, config.Default())

	h.run(12*time.Second, func(elapsed time.Duration) {
		if elapsed == time.Second {
			h.door.Set(rawOpen)
		}
	})

	assert.Equal(t, []logic.EventType{logic.EventOpen}, h.sender.types())
	assert.Equal(t, logic.DoorOpen, h.sender.events[0].event.Door)

	require.Len(t, h.link.times, 3)
	first := h.link.times[0]
	assert.Equal(t, h.start.Add(2*time.Second), first, "first trigger on the detecting poll")
	assert.Equal(t, 3*time.Second, h.link.times[1].Sub(first))
	assert.Equal(t, 6*time.Second, h.link.times[2].Sub(first))

	ids := map[string]bool{}
	for _, m := range h.link.Sent() {
		assert.Equal(t, link.Trigger, m.Kind)
		ids[m.ID] = true
	}
	assert.Len(t, ids, 3, "each trigger carries its own id")
	assert.False(t, h.ctl.Sequence().Active)
	assert.Equal(t, logic.DoorOpen, h.ctl.Door())
}

func TestDoorCloseCancelsSequence(t *testing.T) {
	h := setup(t, config.Default())

	h.run(12*time.Second, func(elapsed time.Duration) {
		switch elapsed {
		case time.Second:
			h.door.Set(rawOpen)
		case 3 * time.Second:
			h.door.Set(rawClosed)
		}
	})

	assert.Len(t, h.link.times, 1, "no triggers after the close")
	assert.False(t, h.ctl.Sequence().Active)

	// The close at 4s falls inside the 5s cooldown opened at 2s.
	assert.Equal(t, []logic.EventType{logic.EventOpen}, h.sender.types())
	assert.Equal(t, 1, h.ctl.Counts().Close)
	assert.Len(t, h.mirror.Events, 2, "the mirror is not rate limited")
}

func TestSecondOpenWhileActiveDoesNotRestart(t *testing.T) {
	h := setup(t, config.Default())

	h.run(12*time.Second, func(elapsed time.Duration) {
		switch elapsed {
		case 100 * time.Millisecond:
			h.door.Set(rawOpen)
		case 2100 * time.Millisecond:
			h.door.Set(rawClosed)
		case 2200 * time.Millisecond:
			h.door.Set(rawOpen)
		}
	})

	// Poll at 2s sees open, poll at 4s sees open again (the bounce fell
	// between polls), so one sequence.
	assert.Len(t, h.link.times, 3)
	assert.Equal(t, 1, h.ctl.Counts().Open)
}

func TestWeightEvents(t *testing.T) {
	h := setup(t, config.Default())

	h.adc.Set(120)
	h.run(61*time.Second, nil)
	require.Equal(t, []logic.EventType{logic.EventDelivery}, h.sender.types())
	w := h.sender.events[0].event.Weight
	require.NotNil(t, w)
	assert.Equal(t, 120.0, *w)
	assert.Equal(t, 120.0, h.tracker.Snapshot().Baseline)

	h.adc.Set(125)
	h.run(121*time.Second, nil)
	assert.Len(t, h.sender.events, 1, "5 g change is below threshold")

	h.adc.Set(30)
	h.run(181*time.Second, nil)
	assert.Equal(t, []logic.EventType{logic.EventDelivery, logic.EventRemoval}, h.sender.types())
}

func TestWeightNotReadyIsSkipped(t *testing.T) {
	h := setup(t, config.Default())
	h.adc.NotReady = true
	h.adc.Set(500)

	h.run(61*time.Second, nil)
	assert.Empty(t, h.sender.events)
	assert.Zero(t, h.tracker.Snapshot().Baseline)
}

func TestLowBatteryReportedOnce(t *testing.T) {
	h := setup(t, config.Default())
	h.volts.Volts = 3.3 // 10%

	h.run(11*time.Minute, nil)

	var low []sent
	for _, e := range h.sender.events {
		if e.event.Type == logic.EventLowBattery {
			low = append(low, e)
		}
	}
	require.Len(t, low, 1)
	require.NotNil(t, low[0].event.Battery)
	assert.Equal(t, 10, *low[0].event.Battery)
	assert.Equal(t, 1, h.ctl.Counts().LowBattery)

	snap := h.tracker.Snapshot()
	assert.True(t, snap.BatteryKnown)
	assert.Equal(t, 10, snap.Battery)
}

func TestHeartbeat(t *testing.T) {
	h := setup(t, config.Default())

	h.run(10*time.Minute+time.Second, nil)

	require.Equal(t, []logic.EventType{logic.EventHeartbeat}, h.sender.types())
	hb := h.sender.events[0].event
	require.NotNil(t, hb.Battery)
	assert.Equal(t, 80, *hb.Battery)
	assert.Equal(t, h.start.Add(10*time.Minute), hb.Timestamp)

	require.Equal(t, []string{"HEARTBEAT"}, h.mirror.SystemEventNames())
	var payload status.StatusJSON
	require.NoError(t, json.Unmarshal(h.mirror.SystemEvents[0].RawPayload, &payload))
	assert.Equal(t, "HEARTBEAT", payload.Status.Event)
	assert.Equal(t, "CLOSED", payload.Status.Door)
}

func TestCameraRepliesAreMatched(t *testing.T) {
	h := setup(t, config.Default())

	// The camera answers every trigger it has received; the second fails.
	answered := 0
	answer := func(elapsed time.Duration) {
		if elapsed == time.Second {
			h.door.Set(rawOpen)
		}
		for {
			m, ok := h.cam.TryRecv()
			if !ok {
				return
			}
			answered++
			require.NoError(t, h.cam.Send(m.Reply(answered != 2)))
		}
	}

	// Triggers go out at 2s, 5s and 8s; the third is sent by the last step.
	h.run(8*time.Second, answer)
	cs := h.ctl.CameraStats()
	assert.Equal(t, 3, cs.Triggers)
	assert.Equal(t, 1, cs.Successes)
	assert.Equal(t, 1, cs.Failures)
	assert.Equal(t, 1, cs.Outstanding)

	h.run(10*time.Second, answer)
	cs = h.ctl.CameraStats()
	assert.Equal(t, 2, cs.Successes)
	assert.Zero(t, cs.Outstanding)
	assert.Zero(t, cs.Unknown)
	assert.Equal(t, cs, h.tracker.Snapshot().Camera)
}

func TestUnansweredTriggersExpire(t *testing.T) {
	h := setup(t, config.Default())

	h.run(45*time.Second, func(elapsed time.Duration) {
		if elapsed == time.Second {
			h.door.Set(rawOpen)
		}
	})

	cs := h.ctl.CameraStats()
	assert.Equal(t, 3, cs.Lost)
	assert.Zero(t, cs.Outstanding)

	// A late reply is counted as unknown.
	h.cam.Send(h.link.Sent()[0].Reply(true))
	h.run(46*time.Second, nil)
	assert.Equal(t, 1, h.ctl.CameraStats().Unknown)
}

func TestLegacyTriggersCarryNoID(t *testing.T) {
	cfg := config.Default()
	cfg.Serial.Legacy = true
	h := setup(t, cfg)

	h.run(3*time.Second, func(elapsed time.Duration) {
		if elapsed == time.Second {
			h.door.Set(rawOpen)
		}
	})
	require.Len(t, h.link.Sent(), 1)
	assert.Equal(t, link.Message{Kind: link.Trigger}, h.link.Sent()[0])

	h.cam.Send(link.Message{Kind: link.Success})
	h.run(4*time.Second, nil)
	assert.Equal(t, 1, h.ctl.CameraStats().Successes)
}

func TestUnansweredLegacyTriggersExpire(t *testing.T) {
	cfg := config.Default()
	cfg.Serial.Legacy = true
	h := setup(t, cfg)

	h.run(45*time.Second, func(elapsed time.Duration) {
		if elapsed == time.Second {
			h.door.Set(rawOpen)
		}
	})

	cs := h.ctl.CameraStats()
	assert.Equal(t, 3, cs.Lost)
	assert.Zero(t, cs.Outstanding)
}

func TestPrimeDoesNotEmit(t *testing.T) {
	cfg := config.Default()
	h := setup(t, cfg)
	h.door.Set(rawOpen)
	require.NoError(t, h.ctl.Prime(h.start))

	h.run(2*time.Second, nil)
	assert.Empty(t, h.sender.events)
	assert.Empty(t, h.link.Sent())
	assert.Equal(t, logic.DoorOpen, h.tracker.Snapshot().Door)
}

func TestUnregisteredDeviceSkipsEventsUntilLookupSucceeds(t *testing.T) {
	var mu sync.Mutex
	registered := false
	var events []string
	var health []notify.Health

	mux := http.NewServeMux()
	mux.HandleFunc("/device/lookup", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if !registered {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"device_id": 7, "clerk_id": "clerk_1"}`))
	})
	mux.HandleFunc("/api/iot/event", func(w http.ResponseWriter, r *http.Request) {
		var p notify.EventPayload
		json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		events = append(events, p.EventData.EventType)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/devices/7/health", func(w http.ResponseWriter, r *http.Request) {
		var hr notify.Health
		json.NewDecoder(r.Body).Decode(&hr)
		mu.Lock()
		health = append(health, hr)
		mu.Unlock()
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	cfg := config.Default()
	cfg.Backend.BaseURL = ts.URL
	cfg.Backend.RequireRegistration = true

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := &clock{t: start}
	door := gpio.NewFakeDoor(rawClosed)
	mainEnd, _ := link.Pipe()
	registry := notify.NewRegistry(ts.Client(), notify.RegistryConfig{
		BaseURL:    ts.URL,
		LookupPath: cfg.Backend.LookupPath,
		Serial:     cfg.Device.Serial,
		Firmware:   cfg.Device.Firmware,
		Retry:      cfg.Backend.RegistrationRetry.Duration,
	})
	client := notify.NewClient(ts.Client(), notify.ClientConfig{
		BaseURL:   ts.URL,
		EventPath: cfg.Backend.EventPath,
		Serial:    cfg.Device.Serial,
		Firmware:  cfg.Device.Firmware,
	})
	gate := notify.NewGate(cfg.Notify.Cooldown.Duration, &fakeConn{up: true}, client, clk.now)
	gate.Registration = registry
	tracker := status.NewTracker(start, status.Config{})
	ctl := New(cfg, Deps{
		Door:     door,
		Volts:    &gpio.FakeVoltage{Volts: 3.95},
		Link:     mainEnd,
		Gate:     gate,
		Registry: registry,
		Signal:   func() int { return -61 },
		Tracker:  tracker,
	}, start)
	require.NoError(t, ctl.Prime(start))

	step := func(until time.Duration, at func(time.Duration)) {
		for clk.t.Sub(start) < until {
			clk.t = clk.t.Add(500 * time.Millisecond)
			if at != nil {
				at(clk.t.Sub(start))
			}
			ctl.Step(context.Background(), clk.t)
		}
	}

	// Unregistered: the open is detected but not posted.
	step(10*time.Second, func(e time.Duration) {
		if e == time.Second {
			door.Set(rawOpen)
		}
	})
	mu.Lock()
	assert.Empty(t, events)
	registered = true
	mu.Unlock()
	assert.False(t, tracker.Snapshot().Registration.Registered)

	// Lookup is retried after 60s; then events flow and health is reported.
	step(70*time.Second, func(e time.Duration) {
		if e == 65*time.Second {
			door.Set(rawClosed)
		}
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"close"}, events)
	require.Len(t, health, 1)
	assert.Equal(t, notify.Health{ClerkID: "clerk_1", BatteryLevel: 75, SignalStrength: -61, FirmwareVersion: "1.2.0"}, health[0])
	assert.Equal(t, status.Registration{Registered: true, DeviceID: "7", ClerkID: "clerk_1"}, tracker.Snapshot().Registration)
}
