package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DeviceInfo is the identity issued by the backend.
type DeviceInfo struct {
	DeviceID int    `json:"device_id"`
	ClerkID  string `json:"clerk_id"`
}

// Health is a periodic device health report.
type Health struct {
	ClerkID         string `json:"clerk_id"`
	BatteryLevel    int    `json:"battery_level"`
	SignalStrength  int    `json:"signal_strength"`
	FirmwareVersion string `json:"firmware_version"`
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	BaseURL    string
	LookupPath string
	APIKey     string
	Serial     string
	Firmware   string
	Retry      time.Duration
}

// Registry looks the device up by serial number and holds the issued ids.
// Until a lookup succeeds the device is unregistered and lookups are retried
// no more often than once per Retry.
type Registry struct {
	http *http.Client
	cfg  RegistryConfig

	mu          sync.RWMutex
	info        DeviceInfo
	registered  bool
	lastAttempt time.Time
	attempted   bool
}

// NewRegistry creates an unregistered Registry.
func NewRegistry(hc *http.Client, cfg RegistryConfig) *Registry {
	return &Registry{http: hc, cfg: cfg}
}

// Registered implements Registration.
func (r *Registry) Registered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registered
}

// Info returns the issued identity, valid only when registered.
func (r *Registry) Info() (DeviceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info, r.registered
}

// Lookup queries the backend for this device's identity.
func (r *Registry) Lookup(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	r.lastAttempt = now
	r.attempted = true
	r.mu.Unlock()

	u := strings.TrimRight(r.cfg.BaseURL, "/") + r.cfg.LookupPath + "?serial_id=" + url.QueryEscape(r.cfg.Serial)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build lookup request: %w", err)
	}
	setCommonHeaders(req, r.cfg.APIKey, r.cfg.Firmware)

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("device lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return checkStatusOrCode(resp)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode lookup response: %w", err)
	}
	if _, ok := raw["device_id"]; !ok {
		return errors.New("lookup response missing device_id")
	}
	if _, ok := raw["clerk_id"]; !ok {
		return errors.New("lookup response missing clerk_id")
	}

	var info DeviceInfo
	if err := json.Unmarshal(raw["device_id"], &info.DeviceID); err != nil {
		return fmt.Errorf("decode device_id: %w", err)
	}
	if err := json.Unmarshal(raw["clerk_id"], &info.ClerkID); err != nil {
		return fmt.Errorf("decode clerk_id: %w", err)
	}

	r.mu.Lock()
	r.info = info
	r.registered = true
	r.mu.Unlock()
	return nil
}

// RetryDue reports whether an unregistered device should look itself up again.
func (r *Registry) RetryDue(now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.registered {
		return false
	}
	return !r.attempted || now.Sub(r.lastAttempt) >= r.cfg.Retry
}

// ReportHealth posts a health report for the registered device.
func (r *Registry) ReportHealth(ctx context.Context, batteryLevel, signalStrength int) error {
	info, ok := r.Info()
	if !ok {
		return ErrUnregistered
	}

	body, err := json.Marshal(Health{
		ClerkID:         info.ClerkID,
		BatteryLevel:    batteryLevel,
		SignalStrength:  signalStrength,
		FirmwareVersion: r.cfg.Firmware,
	})
	if err != nil {
		return fmt.Errorf("encode health: %w", err)
	}

	u := strings.TrimRight(r.cfg.BaseURL, "/") + "/devices/" + strconv.Itoa(info.DeviceID) + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setCommonHeaders(req, r.cfg.APIKey, r.cfg.Firmware)

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("post health: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func checkStatusOrCode(resp *http.Response) error {
	if err := checkStatus(resp); err != nil {
		return err
	}
	return &StatusError{Code: resp.StatusCode}
}
