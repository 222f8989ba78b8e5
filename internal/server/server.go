package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/discovery"
	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/version"
)

// shutdownTimeout bounds how long in-flight requests may run after shutdown
const shutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Host         string
	Port         int
	CertPath     string // Path to certificate file (optional if GenerateCert is true)
	KeyPath      string // Path to private key file (optional if GenerateCert is true)
	GenerateCert bool   // If true, serve HTTPS with an in-memory self-signed certificate

	// Advertise announces the backend over mDNS as Instance
	Advertise bool
	Instance  string

	// ProjectID and Region are published in the mDNS TXT record
	ProjectID string
	Region    string
}

// relayCloser is implemented by handlers that hold hijacked relay sockets
type relayCloser interface {
	CloseRelays()
}

// Server hosts a backend handler for development devices
type Server struct {
	config     *Config
	handler    http.Handler
	tlsConfig  *tls.Config
	httpServer *http.Server

	mu         sync.Mutex
	listener   net.Listener
	advertiser *discovery.Advertiser
}

// New creates a new Server instance serving handler
func New(config *Config, handler http.Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: handler is required")
	}

	var tlsConfig *tls.Config
	var err error

	switch {
	case config.CertPath != "" || config.KeyPath != "":
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	case config.GenerateCert:
		logging.Info("Generating self-signed server certificate")
		tlsConfig, err = generateAndLoadCert(config.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate: %w", err)
		}
	}

	return &Server{
		config:    config,
		handler:   handler,
		tlsConfig: tlsConfig,
	}, nil
}

// TLS reports whether the server speaks HTTPS
func (s *Server) TLS() bool { return s.tlsConfig != nil }

// Listen binds the listening socket. Port 0 picks a free port.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var listener net.Listener
	var err error
	if s.tlsConfig != nil {
		listener, err = tls.Listen("tcp", addr, s.tlsConfig)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or "" before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the URL devices should use as their host
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, _ := net.SplitHostPort(addr)
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	scheme := "http"
	if s.TLS() {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

// Serve serves requests until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer, listener := s.httpServer, s.listener
	s.mu.Unlock()

	logging.Info("Push backend listening",
		zap.String("url", s.BaseURL()),
		zap.Bool("tls", s.TLS()),
		zap.String("version", version.Full()),
	)
	if s.TLS() {
		logging.Debug("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	if s.config.Advertise {
		if err := s.advertise(); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		s.withdraw()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Start serves until SIGINT or SIGTERM
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.withdraw()

	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	// Websocket relays are hijacked and are not tracked by http.Server
	if rc, ok := s.handler.(relayCloser); ok {
		rc.CloseRelays()
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		_ = httpServer.Close()
	} else {
		logging.Info("All connections closed gracefully")
	}

	logging.Sync()
	return nil
}

func (s *Server) advertise() error {
	addr := s.Addr()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	instance := s.config.Instance
	if instance == "" {
		instance, _ = os.Hostname()
	}
	if instance == "" {
		instance = "localzpush-dev"
	}

	tlsFlag := "0"
	if s.TLS() {
		tlsFlag = "1"
	}
	metadata := map[string]string{
		discovery.TxtTLS:     tlsFlag,
		discovery.TxtVersion: version.SDK,
	}
	if s.config.ProjectID != "" {
		metadata[discovery.TxtProjectID] = s.config.ProjectID
	}
	if s.config.Region != "" {
		metadata[discovery.TxtRegion] = s.config.Region
	}

	adv, err := discovery.Advertise(instance, port, metadata)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.advertiser = adv
	s.mu.Unlock()
	return nil
}

func (s *Server) withdraw() {
	s.mu.Lock()
	adv := s.advertiser
	s.advertiser = nil
	s.mu.Unlock()
	adv.Shutdown()
}
