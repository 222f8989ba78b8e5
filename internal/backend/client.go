package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/sdkerrors"
	"github.com/localz/localzpush-go/internal/version"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 15 * time.Second

	// DefaultPlatform is reported when the host does not set one
	DefaultPlatform = "go"

	// maxErrorBody caps how much of a non-JSON error body ends up in messages
	maxErrorBody = 512

	headerProjectID  = "X-Project-Id"
	headerProjectKey = "X-Project-Key"
)

// Client talks to the push backend for one project. It never retries; retry
// policy belongs to the caller.
type Client struct {
	// BaseURL is the scheme and host of the API (e.g., "https://push-au.localz.io")
	BaseURL string

	ProjectID  string
	ProjectKey string

	// Platform identifies the host OS family in device records
	Platform string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// NewClient creates a client for host. A host without a scheme is reached
// over https.
func NewClient(host, projectID, projectKey string) *Client {
	return &Client{
		BaseURL:    BaseURL(host),
		ProjectID:  projectID,
		ProjectKey: projectKey,
		Platform:   DefaultPlatform,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL turns a configured host into a base URL
func BaseURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// DeviceRequest is the body of register and update calls
type DeviceRequest struct {
	DeviceID    string `json:"deviceId"`
	DeviceToken string `json:"deviceToken"`
	DeviceName  string `json:"deviceName,omitempty"`
	ProjectID   string `json:"projectId"`
	ProjectKey  string `json:"projectKey"`
	Platform    string `json:"platform"`
	SDKVersion  string `json:"sdkVersion"`
}

// DynamicConfig is the server-issued location tracking policy
type DynamicConfig struct {
	Enabled          bool    `json:"enabled"`
	MinPeriodSeconds int     `json:"minPeriod"`
	DistanceMeters   float64 `json:"distance"`
}

// DeviceResponse is the data part of a successful register/update envelope
type DeviceResponse struct {
	DeviceID      string         `json:"deviceId,omitempty"`
	DynamicConfig *DynamicConfig `json:"dynamicConfig,omitempty"`
}

// LocationReport is the body of a location report
type LocationReport struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
}

// envelope is the response wrapper used by every endpoint
type envelope struct {
	Success bool            `json:"success"`
	Error   *envelopeError  `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterDevice creates the device record
func (c *Client) RegisterDevice(ctx context.Context, req DeviceRequest) (*DeviceResponse, error) {
	var out DeviceResponse
	path := fmt.Sprintf("/v1/projects/%s/devices", url.PathEscape(c.ProjectID))
	if err := c.do(ctx, http.MethodPost, path, req.DeviceID, c.fill(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDevice updates token and name of an existing device record
func (c *Client) UpdateDevice(ctx context.Context, req DeviceRequest) (*DeviceResponse, error) {
	var out DeviceResponse
	path := fmt.Sprintf("/v1/projects/%s/devices/%s", url.PathEscape(c.ProjectID), url.PathEscape(req.DeviceID))
	if err := c.do(ctx, http.MethodPut, path, req.DeviceID, c.fill(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportLocation sends a location update for deviceID
func (c *Client) ReportLocation(ctx context.Context, deviceID string, report LocationReport) error {
	path := fmt.Sprintf("/v1/projects/%s/devices/%s/locations", url.PathEscape(c.ProjectID), url.PathEscape(deviceID))
	return c.do(ctx, http.MethodPost, path, deviceID, report, nil)
}

// Ping checks that the backend answers its health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", "", nil, nil)
}

func (c *Client) fill(req DeviceRequest) DeviceRequest {
	req.ProjectID = c.ProjectID
	req.ProjectKey = c.ProjectKey
	if req.Platform == "" {
		req.Platform = c.Platform
	}
	if req.SDKVersion == "" {
		req.SDKVersion = version.SDK
	}
	return req
}

// do performs a single request and decodes the envelope into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path, deviceID string, body any, out any) error {
	endpoint := c.BaseURL + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return sdkerrors.NewNetworkError("failed to encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return sdkerrors.NewNetworkError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerProjectID, c.ProjectID)
	req.Header.Set(headerProjectKey, c.ProjectKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.LogBackendRequest(method, endpoint, deviceID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		netErr := sdkerrors.NewNetworkError(method+" request failed", err)
		logging.LogBackendResponse(method, endpoint, 0, netErr)
		return netErr
	}
	defer func() { _ = resp.Body.Close() }()

	err = decodeEnvelope(resp, out)
	logging.LogBackendResponse(method, endpoint, resp.StatusCode, err)
	return err
}

func decodeEnvelope(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return sdkerrors.NewNetworkError("failed to read response body", err)
	}

	var env envelope
	parseErr := json.Unmarshal(raw, &env)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || parseErr != nil || !env.Success {
		if parseErr == nil && env.Error != nil {
			return sdkerrors.NewRejectedByServer(resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return sdkerrors.NewRejectedByServer(resp.StatusCode, "", msg)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return sdkerrors.NewRejectedByServer(resp.StatusCode, "", "malformed response data: "+err.Error())
		}
	}
	return nil
}
