package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/localz/localzpush-go/internal/sdkerrors"
	"github.com/localz/localzpush-go/internal/version"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"push-au.localz.io", "https://push-au.localz.io"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"https://push-eu.localz.io/", "https://push-eu.localz.io"},
	}
	for _, tt := range tests {
		if got := BaseURL(tt.host); got != tt.want {
			t.Errorf("BaseURL(%q) = %s, want %s", tt.host, got, tt.want)
		}
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient("push-au.localz.io", "p1", "k1")

	if c.BaseURL != "https://push-au.localz.io" {
		t.Errorf("BaseURL = %s", c.BaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout != DefaultTimeout {
		t.Error("HTTPClient should use the default timeout")
	}

	c.SetTimeout(2 * time.Second)
	if c.HTTPClient.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", c.HTTPClient.Timeout)
	}
}

func TestRegisterDevice_Success(t *testing.T) {
	var got DeviceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/projects/p1/devices" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Project-Key") != "k1" {
			t.Errorf("X-Project-Key = %q", r.Header.Get("X-Project-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"deviceId":"d1","dynamicConfig":{"enabled":true,"minPeriod":300,"distance":150}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "p1", "k1")
	resp, err := c.RegisterDevice(context.Background(), DeviceRequest{DeviceID: "d1", DeviceToken: "tok", DeviceName: "Till 4"})
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}

	if got.ProjectID != "p1" || got.ProjectKey != "k1" {
		t.Errorf("body credentials = %s/%s", got.ProjectID, got.ProjectKey)
	}
	if got.SDKVersion != version.SDK || got.Platform != DefaultPlatform {
		t.Errorf("body sdk/platform = %s/%s", got.SDKVersion, got.Platform)
	}
	if got.DeviceName != "Till 4" {
		t.Errorf("DeviceName = %s", got.DeviceName)
	}

	if resp.DynamicConfig == nil {
		t.Fatal("DynamicConfig should be decoded")
	}
	if !resp.DynamicConfig.Enabled || resp.DynamicConfig.MinPeriodSeconds != 300 || resp.DynamicConfig.DistanceMeters != 150 {
		t.Errorf("DynamicConfig = %+v", resp.DynamicConfig)
	}
}

func TestUpdateDevice_Path(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/projects/p1/devices/d 1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "p1", "k1")
	resp, err := c.UpdateDevice(context.Background(), DeviceRequest{DeviceID: "d 1", DeviceToken: "tok"})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	if resp.DynamicConfig != nil {
		t.Error("DynamicConfig should be nil when absent")
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"error envelope", http.StatusBadRequest, `{"success":false,"error":{"code":"INVALID_TOKEN","message":"bad"}}`, "INVALID_TOKEN"},
		{"success false on 200", http.StatusOK, `{"success":false,"error":{"code":"QUOTA","message":"full"}}`, "QUOTA"},
		{"html 502", http.StatusBadGateway, `<html>bad gateway</html>`, ""},
		{"empty 500", http.StatusInternalServerError, ``, ""},
		{"garbage 200", http.StatusOK, `not json`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, "p1", "k1")
			_, err := c.RegisterDevice(context.Background(), DeviceRequest{DeviceID: "d1", DeviceToken: "t"})
			if !sdkerrors.IsRejectedByServer(err) {
				t.Fatalf("error = %v, want RejectedByServer", err)
			}
			var e *sdkerrors.Error
			if !errors.As(err, &e) || e.Code != tt.wantCode || e.StatusCode != tt.status {
				t.Errorf("error = %+v, want code %q status %d", e, tt.wantCode, tt.status)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, "p1", "k1")
	_, err := c.RegisterDevice(context.Background(), DeviceRequest{DeviceID: "d1", DeviceToken: "t"})
	if !sdkerrors.IsNetworkError(err) {
		t.Errorf("error = %v, want network error", err)
	}
}

func TestReportLocation(t *testing.T) {
	var got LocationReport
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/p1/devices/d1/locations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer server.Close()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewClient(server.URL, "p1", "k1")
	err := c.ReportLocation(context.Background(), "d1", LocationReport{Latitude: -37.81, Longitude: 144.96, Timestamp: at, Trigger: "dynamic"})
	if err != nil {
		t.Fatalf("ReportLocation() error = %v", err)
	}
	if got.Latitude != -37.81 || got.Longitude != 144.96 || !got.Timestamp.Equal(at) || got.Trigger != "dynamic" {
		t.Errorf("report = %+v", got)
	}
}
