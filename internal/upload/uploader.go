package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// TransportFailure is the status reported when no HTTP response arrived.
const TransportFailure = -1

// Result is the outcome of one upload.
type Result struct {
	Success bool
	Status  int
	Err     error
}

// Config configures an Uploader.
type Config struct {
	URL      string
	APIKey   string
	Firmware string
}

// Uploader posts encoded frames. The http.Client timeout bounds the wait for
// the response.
type Uploader struct {
	http *http.Client
	cfg  Config
	enc  Encoder
}

// NewUploader creates an Uploader.
func NewUploader(hc *http.Client, enc Encoder, cfg Config) *Uploader {
	return &Uploader{http: hc, cfg: cfg, enc: enc}
}

// Upload encodes and posts one frame. Only a 2xx status is a success; an
// encoding failure never reaches the network.
func (u *Uploader) Upload(ctx context.Context, meta Metadata, image []byte) Result {
	payload, err := u.enc.Encode(meta, image)
	if err != nil {
		return Result{Status: TransportFailure, Err: fmt.Errorf("encode: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.URL, bytes.NewReader(payload.Body))
	if err != nil {
		return Result{Status: TransportFailure, Err: fmt.Errorf("build request: %w", err)}
	}
	req.ContentLength = int64(len(payload.Body))
	req.Header.Set("Content-Type", payload.ContentType)
	if u.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	}
	req.Header.Set("User-Agent", "MailGuard-IoT/"+u.cfg.Firmware)

	log.Printf("upload: posting %d bytes (image %d)", len(payload.Body), payload.ImageLen)
	resp, err := u.http.Do(req)
	if err != nil {
		return Result{Status: TransportFailure, Err: fmt.Errorf("post: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	io.Copy(io.Discard, resp.Body)
	return Result{Success: true, Status: resp.StatusCode}
}
