// Package netinfo reports network state published by pi-helper in
// /run/pi-helper.env and serves it as the controllers' connectivity check.
package netinfo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// pi-helper env var names.
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// DefaultWireless is the kernel's wireless statistics table.
const DefaultWireless = "/proc/net/wireless"

// Info is one reading of the network state.
type Info struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Connected reports whether pi-helper considers the uplink usable.
func (i *Info) Connected() bool {
	return i != nil && i.Status == "connected"
}

// Read parses an env file. Keys missing from the file fall back to the
// process environment. It returns nil when no status is known.
func Read(path string) (*Info, error) {
	vals := map[string]string{}
	if path != "" {
		m, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if m != nil {
			vals = m
		}
	}
	get := func(k string) string {
		if v, ok := vals[k]; ok {
			return v
		}
		return os.Getenv(k)
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil, nil
	}
	return &Info{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}, nil
}

// Provider caches the last Info and satisfies notify.Connectivity.
type Provider struct {
	path     string
	wireless string

	mu   sync.RWMutex
	info *Info
}

// NewProvider creates a Provider and takes a first reading.
func NewProvider(path string) *Provider {
	p := &Provider{path: path, wireless: DefaultWireless}
	p.Refresh()
	return p
}

// Refresh re-reads the env file. Read errors keep the previous reading.
func (p *Provider) Refresh() *Info {
	info, err := Read(p.path)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		return p.info
	}
	p.info = info
	return info
}

// Info returns the cached reading, or nil.
func (p *Provider) Info() *Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

// Connected reports the cached status. With no status source (pi-helper
// not installed and NETWORK_STATUS unset) the uplink is assumed up and the
// HTTP calls report their own failures.
func (p *Provider) Connected() bool {
	return usable(p.Info())
}

// Reconnect re-reads the status once. Bringing the link up is pi-helper's
// job; this only notices that it has.
func (p *Provider) Reconnect() bool {
	return usable(p.Refresh())
}

func usable(info *Info) bool {
	return info == nil || info.Connected()
}

// Signal returns the strongest wireless level in dBm, or 0 when unknown.
func (p *Provider) Signal() int {
	return ReadSignal(p.wireless)
}

// ReadSignal parses a /proc/net/wireless table and returns the level column
// of the first interface.
func ReadSignal(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for line := 0; sc.Scan(); line++ {
		if line < 2 {
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[3], "."), 64)
		if err != nil {
			continue
		}
		return int(v)
	}
	return 0
}
