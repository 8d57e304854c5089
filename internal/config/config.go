// Package config holds the compiled-in device configuration and an optional
// TOML override. One Config parameterizes both controllers.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/mailguard/internal/gpio"
)

// DefaultFile is read when no path is given and it exists.
const DefaultFile = "mailguard.toml"

// Duration is a time.Duration that decodes from strings such as "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Device identifies the unit to the backend.
type Device struct {
	Serial   string `toml:"serial"`
	Firmware string `toml:"firmware"`
}

// Backend describes the HTTP API.
type Backend struct {
	BaseURL             string   `toml:"base_url"`
	APIKey              string   `toml:"api_key"`
	EventPath           string   `toml:"event_path"`
	UploadPath          string   `toml:"upload_path"`
	LookupPath          string   `toml:"lookup_path"`
	Timeout             Duration `toml:"timeout"`
	RequireRegistration bool     `toml:"require_registration"`
	RegistrationRetry   Duration `toml:"registration_retry"`
	HealthInterval      Duration `toml:"health_interval"`
}

// Door configures the reed switch.
type Door struct {
	Chip         string   `toml:"chip"`
	Pin          int      `toml:"pin"`
	ActiveLow    bool     `toml:"active_low"`
	PollInterval Duration `toml:"poll_interval"`
}

// Weight configures the HX711 load cell.
type Weight struct {
	DataPin     int      `toml:"data_pin"`
	ClockPin    int      `toml:"clock_pin"`
	Calibration float64  `toml:"calibration"`
	Threshold   float64  `toml:"threshold"`
	Samples     int      `toml:"samples"`
	Interval    Duration `toml:"interval"`
}

// Photo configures the capture sequence.
type Photo struct {
	Count    int      `toml:"count"`
	Interval Duration `toml:"interval"`
}

// Notify configures the outbound event gate.
type Notify struct {
	Cooldown Duration `toml:"cooldown"`
}

// Battery configures charge monitoring.
type Battery struct {
	VoltagePath  string   `toml:"voltage_path"`
	Scale        float64  `toml:"scale"` // volts per raw count, including the divider
	MinVolts     float64  `toml:"min_volts"`
	MaxVolts     float64  `toml:"max_volts"`
	LowThreshold int      `toml:"low_threshold"`
	Interval     Duration `toml:"interval"`
}

// Serial configures the link between the controllers.
type Serial struct {
	Port         string   `toml:"port"`
	Baud         int      `toml:"baud"`
	Legacy       bool     `toml:"legacy"`
	ReplyTimeout Duration `toml:"reply_timeout"`
}

// Camera configures capture and upload on the camera controller.
type Camera struct {
	Pipeline  string `toml:"pipeline"`
	MaxUpload int    `toml:"max_upload"`
	Filename  string `toml:"filename"`
	Boundary  string `toml:"boundary"`
	EventType string `toml:"event_type"`
}

// MQTT configures the optional event mirror. An empty broker disables it.
type MQTT struct {
	Broker      string `toml:"broker"`
	TopicPrefix string `toml:"topic_prefix"`
}

// Config is the full device configuration.
type Config struct {
	Device    Device   `toml:"device"`
	Backend   Backend  `toml:"backend"`
	Door      Door     `toml:"door"`
	Weight    Weight   `toml:"weight"`
	Photo     Photo    `toml:"photo"`
	Notify    Notify   `toml:"notify"`
	Battery   Battery  `toml:"battery"`
	Heartbeat Duration `toml:"heartbeat"`
	Serial    Serial   `toml:"serial"`
	Camera    Camera   `toml:"camera"`
	MQTT      MQTT     `toml:"mqtt"`
	NetEnv    string   `toml:"net_env"`
	HTTPAddr  string   `toml:"http_addr"`
	LoopTick  Duration `toml:"loop_tick"`
}

func d(v time.Duration) Duration { return Duration{v} }

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Device: Device{
			Serial:   "ESP32_001",
			Firmware: "1.2.0",
		},
		Backend: Backend{
			BaseURL:           "https://mail-guard-ten.vercel.app",
			EventPath:         "/api/iot/event",
			UploadPath:        "/api/iot/upload",
			LookupPath:        "/device/lookup",
			Timeout:           d(10 * time.Second),
			RegistrationRetry: d(60 * time.Second),
			HealthInterval:    d(time.Hour),
		},
		Door: Door{
			Chip:         "gpiochip0",
			Pin:          gpio.PinDoor,
			ActiveLow:    true,
			PollInterval: d(2 * time.Second),
		},
		Weight: Weight{
			DataPin:     gpio.PinHX711Data,
			ClockPin:    gpio.PinHX711Clk,
			Calibration: -698.11,
			Threshold:   15,
			Samples:     10,
			Interval:    d(60 * time.Second),
		},
		Photo: Photo{
			Count:    3,
			Interval: d(3 * time.Second),
		},
		Notify: Notify{
			Cooldown: d(5 * time.Second),
		},
		Battery: Battery{
			VoltagePath:  "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
			Scale:        3.3 / 4095.0 * 2,
			MinVolts:     3.2,
			MaxVolts:     4.2,
			LowThreshold: 20,
			Interval:     d(5 * time.Minute),
		},
		Heartbeat: d(10 * time.Minute),
		Serial: Serial{
			Port:         "/dev/ttyS0",
			Baud:         115200,
			ReplyTimeout: d(30 * time.Second),
		},
		Camera: Camera{
			Pipeline:  "v4l2src device=/dev/video0 ! videoconvert ! jpegenc quality=90 ! appsink name=sink",
			MaxUpload: 10 * 1024 * 1024,
			Filename:  "esp32-cam.jpg",
			Boundary:  "----WebKitFormBoundary7MA4YWxkTrZu0gW",
			EventType: "delivery",
		},
		MQTT: MQTT{
			TopicPrefix: "mailguard",
		},
		NetEnv:   "/run/pi-helper.env",
		HTTPAddr: ":80",
		LoopTick: d(50 * time.Millisecond),
	}
}

// Load returns the defaults overridden by the TOML file at path. An empty
// path falls back to DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return cfg, nil
		}
		path = DefaultFile
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the controllers cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Device.Serial == "" {
		errs = append(errs, errors.New("device.serial is required"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Door.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("door.poll_interval must be positive"))
	}
	if c.Weight.Interval.Duration <= 0 {
		errs = append(errs, errors.New("weight.interval must be positive"))
	}
	if c.Weight.Threshold <= 0 {
		errs = append(errs, errors.New("weight.threshold must be positive"))
	}
	if c.Photo.Count < 1 {
		errs = append(errs, errors.New("photo.count must be at least 1"))
	}
	if c.Photo.Interval.Duration <= 0 {
		errs = append(errs, errors.New("photo.interval must be positive"))
	}
	if c.LoopTick.Duration <= 0 || c.LoopTick.Duration >= c.Photo.Interval.Duration {
		errs = append(errs, errors.New("loop_tick must be positive and well under photo.interval"))
	}
	if c.Notify.Cooldown.Duration < 0 {
		errs = append(errs, errors.New("notify.cooldown must not be negative"))
	}
	if c.Camera.MaxUpload <= 0 {
		errs = append(errs, errors.New("camera.max_upload must be positive"))
	}
	if c.Camera.Boundary == "" {
		errs = append(errs, errors.New("camera.boundary is required"))
	}
	return errors.Join(errs...)
}
