package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = instance + ".local."
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestScanner_parseServiceEntry(t *testing.T) {
	tests := []struct {
		name      string
		projectID string
		entry     *zeroconf.ServiceEntry
		wantNil   bool
		wantIP    string
		wantPort  int
		wantMeta  map[string]string
	}{
		{
			name:     "IPv4 backend with TXT records",
			entry:    entry("alice-laptop", 8080, []net.IP{net.ParseIP("192.168.4.16")}, nil, "projectId=p1", "region=6000", "tls"),
			wantIP:   "192.168.4.16",
			wantPort: 8080,
			wantMeta: map[string]string{"projectId": "p1", "region": "6000", "tls": ""},
		},
		{
			name:     "IPv6 only",
			entry:    entry("ci-box", 9000, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name:     "prefers IPv4",
			entry:    entry("dual", 80, []net.IP{net.ParseIP("10.0.0.5")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "10.0.0.5",
			wantPort: 80,
		},
		{
			name:    "no address",
			entry:   entry("ghost", 8080, nil, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   entry("portless", 0, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
		{
			name:      "other project filtered",
			projectID: "p1",
			entry:     entry("bob", 8080, []net.IP{net.ParseIP("10.0.0.7")}, nil, "projectId=p2"),
			wantNil:   true,
		},
		{
			name:      "matching project kept",
			projectID: "p1",
			entry:     entry("carol", 8080, []net.IP{net.ParseIP("10.0.0.8")}, nil, "projectId=p1"),
			wantIP:    "10.0.0.8",
			wantPort:  8080,
		},
		{
			name:      "unlabelled backend kept when filtering",
			projectID: "p1",
			entry:     entry("dave", 8080, []net.IP{net.ParseIP("10.0.0.9")}, nil),
			wantIP:    "10.0.0.9",
			wantPort:  8080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := NewScanner()
			scanner.ProjectID = tt.projectID

			b := scanner.parseServiceEntry(tt.entry)
			if tt.wantNil {
				if b != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", b)
				}
				return
			}
			if b == nil {
				t.Fatal("parseServiceEntry() = nil, want backend")
			}
			if b.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", b.IP, tt.wantIP)
			}
			if b.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", b.Port, tt.wantPort)
			}
			for k, v := range tt.wantMeta {
				if got := b.GetMetadata(k); got != v {
					t.Errorf("Metadata[%q] = %q, want %q", k, got, v)
				}
			}
			if time.Since(b.DiscoveredAt) > time.Minute {
				t.Errorf("DiscoveredAt = %v, want recent", b.DiscoveredAt)
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
	if scanner.ProjectID != "" {
		t.Errorf("ProjectID = %q, want empty", scanner.ProjectID)
	}
}
