package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/config"
	"github.com/localz/localzpush-go/internal/discovery"
	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/mockapi"
	"github.com/localz/localzpush-go/internal/relay"
	"github.com/localz/localzpush-go/internal/server"
	"github.com/localz/localzpush-go/internal/tui"
	"github.com/localz/localzpush-go/internal/ui"
	"github.com/localz/localzpush-go/pkg/localzpush"
)

var (
	mockHost      string
	mockPort      int
	mockTLS       bool
	mockCert      string
	mockKey       string
	mockAdvertise bool
	mockInstance  string
	mockMinPeriod time.Duration
	mockDistance  float64

	listenDiscover bool
	listenRetry    time.Duration

	discoverTimeout time.Duration
	discoverPick    bool
)

func init() {
	rootCmd.AddCommand(mockBackendCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(pingCmd)

	f := mockBackendCmd.Flags()
	f.StringVar(&mockHost, "host", "", "Interface to listen on (default all)")
	f.IntVar(&mockPort, "port", 8080, "Port to listen on")
	f.BoolVar(&mockTLS, "tls", false, "Serve HTTPS with a generated self-signed certificate")
	f.StringVar(&mockCert, "cert", "", "TLS certificate file (implies HTTPS)")
	f.StringVar(&mockKey, "key", "", "TLS private key file")
	f.BoolVar(&mockAdvertise, "advertise", false, "Advertise the backend over mDNS")
	f.StringVar(&mockInstance, "instance", "", "mDNS instance name (default hostname)")
	f.DurationVar(&mockMinPeriod, "min-period", 0, "Enable dynamic tracking with this minimum interval")
	f.Float64Var(&mockDistance, "distance", 0, "Dynamic tracking minimum distance in metres")

	listenCmd.Flags().BoolVar(&listenDiscover, "discover", false, "Find a backend over mDNS instead of using the configured host")
	listenCmd.Flags().DurationVar(&listenRetry, "retry", 5*time.Second, "Reconnect delay after the relay drops (0 exits instead)")

	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to browse")
	discoverCmd.Flags().BoolVar(&discoverPick, "pick", false, "Choose a backend interactively and save it as the host override")
}

var mockBackendCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Run an in-memory push backend for development",
	Long: `Run an in-memory backend that accepts device registration, updates and
location reports for the configured project, and relays pushes to devices
listening with 'localzpush listen'.

Send a push to a listening device with:

  curl -X POST -H 'X-Project-Id: p1' -H 'X-Project-Key: k1' \
    -d '{"alert":"hi"}' http://localhost:8080/v1/projects/p1/devices/<id>/push`,
	Example: `  localzpush mock-backend --project-id p1 --project-key k1 --min-period 1m --distance 50
  localzpush mock-backend --project-id p1 --project-key k1 --tls --advertise`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ProjectID == "" || cfg.ProjectKey == "" {
			return errors.New("mock-backend needs --project-id and --project-key")
		}
		if !logging.IsEnabled() {
			if err := logging.Initialize("info"); err != nil {
				return err
			}
		}

		api := mockapi.New(cfg.ProjectID, cfg.ProjectKey)
		if mockMinPeriod > 0 || mockDistance > 0 {
			api.DynamicConfig = &backend.DynamicConfig{
				Enabled:          true,
				MinPeriodSeconds: int(mockMinPeriod / time.Second),
				DistanceMeters:   mockDistance,
			}
		}

		regionLabel := ""
		if cfg.Region != 0 {
			regionLabel = cfg.Region.String()
		}
		srv, err := server.New(&server.Config{
			Host:         mockHost,
			Port:         mockPort,
			CertPath:     mockCert,
			KeyPath:      mockKey,
			GenerateCert: mockTLS,
			Advertise:    mockAdvertise,
			Instance:     mockInstance,
			ProjectID:    cfg.ProjectID,
			Region:       regionLabel,
		}, api)
		if err != nil {
			return err
		}
		if err := srv.Listen(); err != nil {
			return err
		}

		p := ui.NewPanel("Mock backend", "localzpush mock-backend")
		p.Add("URL", srv.BaseURL()).
			Add("Project", cfg.ProjectID).
			AddBool("TLS", srv.TLS()).
			AddBool("mDNS", mockAdvertise)
		if api.DynamicConfig != nil {
			p.AddTone("Dynamic tracking",
				fmt.Sprintf("every %s / %.0fm", mockMinPeriod, mockDistance), ui.ToneGood)
		}
		fmt.Println(p.Render())
		fmt.Printf("\nPoint devices at it with: localzpush config set host %s\n\n", srv.BaseURL())

		return srv.Start()
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive relayed pushes from a development backend",
	Long: `Connect to the backend's push relay and hand every push to the SDK as a
remote notification, acknowledging each with the fetch result. Runs until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, _, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		baseURL := backend.BaseURL(svc.Config().Host)
		if listenDiscover {
			scanner := discovery.NewScanner()
			scanner.ProjectID = cfg.ProjectID
			b, err := scanner.Find(ctx)
			if err != nil {
				return err
			}
			fmt.Println(ui.NewSuccessResult("backend found").AddDetail("Backend", b.String()))
			baseURL = b.BaseURL()
		}

		handler := func(ctx context.Context, payload map[string]any) events.FetchResult {
			results := make(chan localzpush.FetchResult, 1)
			svc.RemoteNotificationReceived(ctx, payload, localzpush.AppStateBackground, func(r localzpush.FetchResult) {
				results <- r
			})
			r := <-results
			printFetchResult(r)
			return r
		}

		client, err := relay.NewClient(baseURL, cfg.ProjectID, cfg.ProjectKey, svc.DeviceID(), handler)
		if err != nil {
			return err
		}
		if cfg.Insecure {
			dialer := *websocket.DefaultDialer
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			client.Dialer = &dialer
		}

		fmt.Println(ui.NewSuccessResult("listening").
			AddDetail("Device", svc.DeviceID()).
			AddDetail("Relay", client.URL))

		for {
			err := client.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if listenRetry <= 0 {
				return err
			}
			logging.Warn("Relay disconnected, retrying", zap.Error(err), zap.Duration("delay", listenRetry))
			fmt.Println(ui.NewWarningResult(fmt.Sprintf("relay disconnected: %v", err)))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(listenRetry):
			}
		}
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find development backends on the local network",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = discoverTimeout
		scanner.ProjectID = cfg.ProjectID

		if discoverPick {
			return pickBackend(cmd.Context(), scanner)
		}

		fmt.Printf("Browsing for %s (%s)...\n", discovery.ServiceType, discoverTimeout)
		found, err := scanner.Scan(cmd.Context())
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println(ui.NewWarningResult("no backends found"))
			return nil
		}

		for _, b := range found {
			p := ui.NewPanel(b.Instance, "")
			p.Add("URL", b.BaseURL()).
				Add("Host", b.Hostname).
				Add("Project", orNone(b.ProjectID())).
				Add("Region", orNone(b.GetMetadata(discovery.TxtRegion))).
				Add("Version", orNone(b.GetMetadata(discovery.TxtVersion)))
			fmt.Println(p.Render())
		}
		return nil
	},
}

func pickBackend(ctx context.Context, scanner *discovery.Scanner) error {
	if !ui.IsTerminal() {
		return errors.New("--pick needs an interactive terminal")
	}
	chosen, err := tui.Pick(ctx, scanner.Scan)
	if err != nil {
		return err
	}
	if chosen == nil {
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	host := chosen.BaseURL()
	effective, err := saveOverride(st, config.KeyHost, &host)
	if err != nil {
		return err
	}
	fmt.Println(ui.NewSuccessResult("backend selected").
		AddDetail("Backend", chosen.String()).
		AddDetail("Host", effective.Host))
	return nil
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := validateOverridesFromState()
		if err != nil {
			return err
		}
		client := backend.NewClient(c.Host, c.ProjectID, c.ProjectKey)
		if hc := httpClient(); hc != nil {
			client.HTTPClient = hc
		}

		start := time.Now()
		if err := client.Ping(cmd.Context()); err != nil {
			fmt.Println(ui.NewFailureResult("backend unreachable", err,
				"check the host with 'localzpush config get'",
				"use --insecure for self-signed development backends"))
			return err
		}
		fmt.Println(ui.NewSuccessResult("backend reachable").
			AddDetail("URL", client.BaseURL).
			AddDetail("Latency", time.Since(start).Round(time.Millisecond).String()))
		return nil
	},
}

// validateOverridesFromState resolves the configuration with saved overrides
func validateOverridesFromState() (localzpush.Config, error) {
	st, err := openStore()
	if err != nil {
		return localzpush.Config{}, err
	}
	return validateOverrides(overrides(st))
}
