// Package binsight is a thin Go client for the binsight dashboard API.
// It decodes the service's response envelope and surfaces the error
// codes the service returns.
package binsight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response decoded from the service envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binsight: %s (%s, request %s)", e.Message, e.Code, e.RequestID)
}

// Bin mirrors the bin document served by the API.
type Bin struct {
	BinID     string `json:"binId"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	FillLevel int    `json:"fillLevel"`
	Capacity  int    `json:"capacity"`
	Location  struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Address   string  `json:"address"`
	} `json:"location"`
	LastEmptied time.Time `json:"lastEmptied"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// Alert mirrors the alert feed entry served by the API.
type Alert struct {
	ID        string    `json:"id"`
	BinID     string    `json:"binId"`
	Zone      string    `json:"zone"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Telemetry is a sensor reading pushed through the iot endpoints.
type Telemetry struct {
	DeviceID     string    `json:"deviceId"`
	BinID        string    `json:"binId"`
	FillLevel    int       `json:"fillLevel"`
	Timestamp    time.Time `json:"timestamp"`
	BatteryLevel *int      `json:"batteryLevel,omitempty"`
}

// Client calls the binsight HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	deviceID   string
	adminToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDeviceID sets the X-Device-ID header sent on every request, which
// keys the iot rate limit tier.
func WithDeviceID(id string) Option {
	return func(c *Client) { c.deviceID = id }
}

// WithAdminToken sets the bearer token for admin operations.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: env.RequestID}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// PushTelemetry submits a sensor reading.
func (c *Client) PushTelemetry(ctx context.Context, reading Telemetry) error {
	return c.do(ctx, http.MethodPost, "/api/iot/telemetry", reading, nil)
}

// Heartbeat reports that a device is alive without a fill reading.
func (c *Client) Heartbeat(ctx context.Context, deviceID, binID string) error {
	body := map[string]string{"deviceId": deviceID, "binId": binID}
	return c.do(ctx, http.MethodPost, "/api/iot/heartbeat", body, nil)
}

// ListBins returns all bins, optionally filtered by status and category.
func (c *Client) ListBins(ctx context.Context, status, category string) ([]Bin, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if category != "" {
		q.Set("category", category)
	}
	path := "/api/bins"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Bins []Bin `json:"bins"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Bins, nil
}

// GetBin returns a single bin by its public identifier.
func (c *Client) GetBin(ctx context.Context, binID string) (*Bin, error) {
	var bin Bin
	if err := c.do(ctx, http.MethodGet, "/api/bins/"+url.PathEscape(binID), nil, &bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// ListAlerts returns the alert feed, newest first.
func (c *Client) ListAlerts(ctx context.Context, severity, binID string) ([]Alert, error) {
	q := url.Values{}
	if severity != "" {
		q.Set("severity", severity)
	}
	if binID != "" {
		q.Set("binId", binID)
	}
	path := "/api/alerts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Alerts []Alert `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}

// DismissAlert removes an alert from the feed. Requires an admin token.
func (c *Client) DismissAlert(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodPost, "/api/alerts/"+url.PathEscape(alertID)+"/dismiss", nil, nil)
}
