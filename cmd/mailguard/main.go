// Command mailguard runs the main mailbox controller: it watches the door,
// the load cell and the battery, asks the camera controller for photos when
// the door opens and reports events to the backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
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
	"github.com/sweeney/mailguard/internal/web"
)

const (
	serialReadTimeout = 20 * time.Millisecond
	networkRefresh    = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "TOML config file (default "+config.DefaultFile+" if present)")
	printState := flag.Bool("print-state", false, "Print current door and battery state and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	door, err := gpio.NewRealDoor(cfg.Door.Chip, cfg.Door.Pin)
	if err != nil {
		return fmt.Errorf("init door: %w", err)
	}
	defer door.Close()

	volts := gpio.SysfsVoltage{Path: cfg.Battery.VoltagePath, Scale: cfg.Battery.Scale}

	if printState {
		return writeState(os.Stdout, cfg, door, volts)
	}

	// The load cell is optional: without it the daemon still reports the door.
	var scale logic.Scale
	hx, err := gpio.NewHX711(cfg.Door.Chip, cfg.Weight.DataPin, cfg.Weight.ClockPin)
	if err != nil {
		log.Printf("load cell unavailable, weight detection disabled: %v", err)
	} else {
		defer hx.Close()
		s := gpio.NewScale(hx, cfg.Weight.Calibration)
		if err := s.Tare(cfg.Weight.Samples); err != nil {
			log.Printf("load cell tare failed: %v", err)
		}
		scale = s
	}

	port, err := link.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud, cfg.Serial.Legacy, serialReadTimeout)
	if err != nil {
		return fmt.Errorf("init camera link: %w", err)
	}
	defer port.Close()

	network := netinfo.NewProvider(cfg.NetEnv)

	hc := &http.Client{Timeout: cfg.Backend.Timeout.Duration}
	client := notify.NewClient(hc, notify.ClientConfig{
		BaseURL:   cfg.Backend.BaseURL,
		EventPath: cfg.Backend.EventPath,
		APIKey:    cfg.Backend.APIKey,
		Serial:    cfg.Device.Serial,
		Firmware:  cfg.Device.Firmware,
	})
	gate := notify.NewGate(cfg.Notify.Cooldown.Duration, network, client, time.Now)

	var registry *notify.Registry
	if cfg.Backend.RequireRegistration {
		registry = notify.NewRegistry(hc, notify.RegistryConfig{
			BaseURL:    cfg.Backend.BaseURL,
			LookupPath: cfg.Backend.LookupPath,
			APIKey:     cfg.Backend.APIKey,
			Serial:     cfg.Device.Serial,
			Firmware:   cfg.Device.Firmware,
			Retry:      cfg.Backend.RegistrationRetry.Duration,
		})
		gate.Registration = registry
	}

	// Interfaces stay nil when no broker is configured.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.MQTT.Broker, "mailguard-"+cfg.Device.Serial,
			mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Device.Serial))
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	start := time.Now()
	tracker := status.NewTracker(start, statusConfig(cfg))
	tracker.SetNetwork(network.Info())

	ctl := monitor.New(cfg, monitor.Deps{
		Door:     door,
		Scale:    scale,
		Volts:    volts,
		Link:     port,
		Gate:     gate,
		Registry: registry,
		Signal:   network.Signal,
		Mirror:   publisher,
		Tracker:  tracker,
	}, start)
	if err := ctl.Prime(start); err != nil {
		return fmt.Errorf("read door: %w", err)
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil && !errors.Is(err, mqtt.ErrBuffered) {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: serial=%s door_poll=%v weight_interval=%v photos=%dx%v cooldown=%v heartbeat=%v",
		cfg.Device.Serial, cfg.Door.PollInterval.Duration, cfg.Weight.Interval.Duration,
		cfg.Photo.Count, cfg.Photo.Interval.Duration, cfg.Notify.Cooldown.Duration, cfg.Heartbeat.Duration)

	ticker := time.NewTicker(cfg.LoopTick.Duration)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, publisher, mqttStatus, tracker, network, time.Now, ticker.C, sigCh)
}

// stepper is the part of monitor.Controller the loop drives.
type stepper interface {
	Step(ctx context.Context, now time.Time)
}

// networkSource refreshes the cached network reading.
type networkSource interface {
	Refresh() *netinfo.Info
}

func runLoop(ctl stepper, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, network networkSource, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lastNetwork time.Time

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if publisher == nil {
				return nil
			}
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()

			if network != nil && tracker != nil && t.Sub(lastNetwork) >= networkRefresh {
				lastNetwork = t
				tracker.SetNetwork(network.Refresh())
			}
			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			ctl.Step(ctx, t)
		}
	}
}

// writeState prints the current door state and battery charge.
func writeState(w io.Writer, cfg config.Config, door gpio.DoorReader, volts gpio.VoltageSource) error {
	raw, err := door.Read()
	if err != nil {
		return fmt.Errorf("read door: %w", err)
	}
	m := logic.NewDoorMonitor(cfg.Door.ActiveLow)
	m.Prime(raw)

	battery := "unknown"
	if v, err := volts.ReadVolts(); err == nil {
		b := logic.NewBatteryMonitor(cfg.Battery.MinVolts, cfg.Battery.MaxVolts, cfg.Battery.LowThreshold)
		battery = fmt.Sprintf("%d%% (%.2f V)", b.Percent(v), v)
	}
	fmt.Fprintf(w, "Door: %s, Battery: %s\n", m.State(), battery)
	return nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Serial:           cfg.Device.Serial,
		Firmware:         cfg.Device.Firmware,
		DoorPollMs:       cfg.Door.PollInterval.Milliseconds(),
		WeightIntervalMs: cfg.Weight.Interval.Milliseconds(),
		PhotoCount:       cfg.Photo.Count,
		PhotoIntervalMs:  cfg.Photo.Interval.Milliseconds(),
		CooldownMs:       cfg.Notify.Cooldown.Milliseconds(),
		HeartbeatMs:      cfg.Heartbeat.Milliseconds(),
		Backend:          cfg.Backend.BaseURL,
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTPAddr,
		RequireRegistry:  cfg.Backend.RequireRegistration,
	}
}
