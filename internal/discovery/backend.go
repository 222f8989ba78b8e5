package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// TXT record keys advertised by development backends
const (
	TxtProjectID = "projectId"
	TxtRegion    = "region"
	TxtTLS       = "tls"
	TxtVersion   = "version"
)

// Backend is a development push backend found on the local network
type Backend struct {
	// Instance is the advertised service instance name (e.g., "alice-laptop")
	Instance string

	// Hostname is the mDNS hostname (e.g., "alice-laptop.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the HTTP port
	Port int

	// Metadata contains the TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the backend was seen
	DiscoveredAt time.Time
}

// String returns a human-readable description
func (b *Backend) String() string {
	return fmt.Sprintf("Push backend %q (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// BaseURL returns the API base URL; https when the backend advertises tls=1
func (b *Backend) BaseURL() string {
	scheme := "http"
	if b.GetMetadata(TxtTLS) == "1" {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// ProjectID returns the project the backend serves, if advertised
func (b *Backend) ProjectID() string {
	return b.GetMetadata(TxtProjectID)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Backend) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
