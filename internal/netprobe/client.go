package netprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client asks the campus network controller whether a device is currently
// associated with the trusted WiFi. It implements trust.NetworkProbe.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every presence check reports
// connected; useful for dev environments without a controller.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

type presenceResponse struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid"`
}

// Connected reports whether the device is on the campus network right now.
// The controller is queried on every call; presence is never cached.
func (c *Client) Connected(ctx context.Context, deviceID string) (bool, error) {
	if c.Skip {
		return true, nil
	}
	if deviceID == "" {
		return false, nil
	}

	u := c.BaseURL + "/v1/clients/" + url.PathEscape(deviceID) + "/presence"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("network controller returned %d", resp.StatusCode)
	}

	var pr presenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return false, err
	}
	return pr.Connected, nil
}

// Health checks controller reachability on startup.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("network controller unhealthy: %d", resp.StatusCode)
	}
	return nil
}
