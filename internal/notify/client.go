package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sweeney/mailguard/internal/logic"
)

// Sender delivers one event to the backend.
type Sender interface {
	Send(ctx context.Context, event logic.Event) error
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL   string
	EventPath string
	APIKey    string
	Serial    string
	Firmware  string
}

// Client posts events to the backend event endpoint.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

// NewClient creates a Client. The http.Client carries the request timeout.
func NewClient(hc *http.Client, cfg ClientConfig) *Client {
	return &Client{http: hc, cfg: cfg}
}

// Send posts the event as JSON. Any non-2xx response is a *StatusError.
func (c *Client) Send(ctx context.Context, event logic.Event) error {
	payload, err := FormatEvent(c.cfg.Serial, c.cfg.Firmware, event)
	if err != nil {
		return fmt.Errorf("format event: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EventPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setCommonHeaders(req, c.cfg.APIKey, c.cfg.Firmware)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func setCommonHeaders(req *http.Request, apiKey, firmware string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("User-Agent", "MailGuard-IoT/"+firmware)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
