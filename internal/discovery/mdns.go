package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/logging"
)

const (
	// ServiceType is the mDNS service type of development push backends
	ServiceType = "_localzpush._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for backend discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS backend discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration

	// ProjectID, when set, filters out backends advertising another project
	ProjectID string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every backend seen until the timeout or ctx expires
func (s *Scanner) Scan(ctx context.Context) ([]*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Backend, 1)
	go func() {
		var found []*Backend
		seen := make(map[string]bool)
		for entry := range entries {
			b := s.parseServiceEntry(entry)
			if b == nil || seen[b.Instance] {
				continue
			}
			seen[b.Instance] = true
			logging.Debug("Backend discovered", zap.String("backend", b.String()))
			found = append(found, b)
		}
		collected <- found
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the context is done
	select {
	case found := <-collected:
		return found, nil
	case <-time.After(time.Second):
		return nil, fmt.Errorf("mDNS browse did not finish")
	}
}

// Find returns the first matching backend
func (s *Scanner) Find(ctx context.Context) (*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Backend, 1)
	go func() {
		for entry := range entries {
			if b := s.parseServiceEntry(entry); b != nil {
				select {
				case found <- b:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case b := <-found:
		return b, nil
	case <-ctx.Done():
		select {
		case b := <-found:
			return b, nil
		default:
		}
		return nil, fmt.Errorf("no push backend found within %s", s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Backend.
// Returns nil for entries without an address or for another project.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Backend {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	if s.ProjectID != "" && metadata[TxtProjectID] != "" && metadata[TxtProjectID] != s.ProjectID {
		return nil
	}

	return &Backend{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Advertiser announces a development backend until Shutdown
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers instance on port with the given TXT metadata
func Advertise(instance string, port int, metadata map[string]string) (*Advertiser, error) {
	txt := make([]string, 0, len(metadata))
	for k, v := range metadata {
		txt = append(txt, k+"="+v)
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to advertise %s: %w", ServiceType, err)
	}
	logging.Info("Advertising push backend",
		zap.String("instance", instance),
		zap.Int("port", port),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement
func (a *Advertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}
