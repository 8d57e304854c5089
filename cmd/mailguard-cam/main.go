// Command mailguard-cam runs the camera controller: it waits for TRIGGER
// commands from the main controller on the serial link, captures a frame,
// uploads it and answers SUCCESS or FAILURE.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/mailguard/internal/camera"
	"github.com/sweeney/mailguard/internal/config"
	"github.com/sweeney/mailguard/internal/link"
	"github.com/sweeney/mailguard/internal/netinfo"
	"github.com/sweeney/mailguard/internal/upload"
)

const serialReadTimeout = 20 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "TOML config file (default "+config.DefaultFile+" if present)")
	snapshot := flag.String("snapshot", "", "Capture one frame to this file and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *snapshot); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, snapshot string) error {
	cam, err := camera.NewGstCapturer(cfg.Camera.Pipeline)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	defer cam.Close()

	if snapshot != "" {
		f, err := os.Create(snapshot)
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		defer f.Close()
		return writeSnapshot(context.Background(), f, cam)
	}

	port, err := link.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud, cfg.Serial.Legacy, serialReadTimeout)
	if err != nil {
		return fmt.Errorf("init main link: %w", err)
	}
	defer port.Close()

	hc := &http.Client{Timeout: cfg.Backend.Timeout.Duration}
	up := upload.NewUploader(hc, upload.Encoder{
		Boundary: cfg.Camera.Boundary,
		Filename: cfg.Camera.Filename,
		MaxFrame: cfg.Camera.MaxUpload,
	}, upload.Config{
		URL:      strings.TrimRight(cfg.Backend.BaseURL, "/") + cfg.Backend.UploadPath,
		APIKey:   cfg.Backend.APIKey,
		Firmware: cfg.Device.Firmware,
	})

	ctl := camera.NewController(port, cam, up, netinfo.NewProvider(cfg.NetEnv), camera.Config{
		Serial:    cfg.Device.Serial,
		EventType: cfg.Camera.EventType,
	}, time.Now)

	log.Printf("started: serial=%s port=%s legacy=%v upload=%s", cfg.Device.Serial, cfg.Serial.Port, cfg.Serial.Legacy, cfg.Backend.UploadPath)

	ticker := time.NewTicker(cfg.LoopTick.Duration)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, ticker.C, sigCh)
}

// controller is the part of camera.Controller the loop drives.
type controller interface {
	Step(ctx context.Context) bool
	Stats() camera.Stats
}

func runLoop(ctl controller, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case s := <-sig:
			st := ctl.Stats()
			log.Printf("received %v, shutting down: triggers=%d ok=%d failed=%d", s, st.Triggers, st.Successes, st.Failures)
			return nil

		case <-tick:
			// Serve everything that queued up since the last tick.
			for ctl.Step(ctx) {
			}
		}
	}
}

// writeSnapshot captures one frame and writes it to w.
func writeSnapshot(ctx context.Context, w io.Writer, cam camera.Capturer) error {
	frame, err := cam.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer frame.Release()

	if _, err := w.Write(frame.Data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	log.Printf("snapshot: %d bytes", len(frame.Data))
	return nil
}
