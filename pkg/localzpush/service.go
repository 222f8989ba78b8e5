package localzpush

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/config"
	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/location"
	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/registrar"
	"github.com/localz/localzpush-go/internal/store"
	"github.com/localz/localzpush-go/internal/version"
)

// Options configures a Service
type Options struct {
	Settings Settings

	// Environments replaces the built-in environment set
	Environments *Environments

	// Store defaults to a FileStore at DefaultStorePath
	Store Store

	// Observer receives SDK events; see the *Observer interfaces
	Observer any

	PushAuthorizer    PushAuthorizer
	LocationProvider  LocationProvider
	BackgroundRefresh BackgroundRefresh

	// HTTPClient replaces the backend client's HTTP client
	HTTPClient *http.Client

	// Platform is reported in device records ("ios", "android", ...)
	Platform string

	// Now is the clock used by the location policy; time.Now if nil
	Now func() time.Time

	// Logger routes SDK logs into the host's zap tree
	Logger *zap.Logger
}

// Service is the SDK entry point. It is safe for concurrent use.
type Service struct {
	resolver   *config.Resolver
	store      store.Store
	client     *backend.Client
	dispatcher *events.Dispatcher
	registrar  *registrar.Registrar
	policy     *location.Policy

	locations  LocationProvider
	background BackgroundRefresh
	now        func() time.Time

	// serializes the check-send-record sequence of location reports
	reportMu sync.Mutex

	closeOnce sync.Once
}

// logEndpointChange warns when the backend differs from the one recorded by
// the previous run. The persisted registration was made against that backend.
func logEndpointChange(st Store, cfg config.Config) {
	prevHost, ok := st.Get(store.KeyHost)
	if !ok {
		return
	}
	prevRegion, _ := store.GetInt(st, store.KeyRegionCode)
	if prevHost == cfg.Host && prevRegion == int(cfg.RegionCode) {
		return
	}
	logging.Warn("Backend endpoint changed since last run",
		zap.Int("previous_region", prevRegion),
		zap.Int("region", int(cfg.RegionCode)),
		zap.String("previous_host", prevHost),
		zap.String("host", cfg.Host),
	)
}

// New resolves the configuration, restores persisted state and returns a
// ready Service. Configuration errors are returned here and nowhere else.
func New(opts Options) (*Service, error) {
	if opts.Logger != nil {
		logging.SetLogger(opts.Logger)
	} else if !logging.IsEnabled() {
		if err := logging.InitializeFromEnv(); err != nil {
			return nil, err
		}
	}

	resolver, err := config.NewResolver(opts.Environments)
	if err != nil {
		return nil, err
	}
	if err := resolver.Configure(opts.Settings); err != nil {
		return nil, err
	}
	cfg := resolver.Effective()
	if cfg.Debug {
		if err := logging.EnableDebug(); err != nil {
			return nil, err
		}
	}

	st := opts.Store
	if st == nil {
		path, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		fs, err := store.OpenFileStore(path)
		if err != nil {
			return nil, err
		}
		st = fs
	}

	logEndpointChange(st, cfg)
	err = st.Update(func(tx *store.Tx) error {
		tx.Set(store.KeyRegionCode, strconv.Itoa(int(cfg.RegionCode)))
		tx.Set(store.KeyHost, cfg.Host)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist region: %w", err)
	}

	client := backend.NewClient(cfg.Host, cfg.ProjectID, cfg.ProjectKey)
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	}
	if opts.Platform != "" {
		client.Platform = opts.Platform
	}

	dispatcher := events.NewDispatcher()
	dispatcher.SetObserver(opts.Observer)

	policy := location.NewPolicy(st)

	reg, err := registrar.New(registrar.Options{
		Store:      st,
		Backend:    client,
		Authorizer: opts.PushAuthorizer,
		Dispatcher: dispatcher,
		OnDynamicConfig: func(c *backend.DynamicConfig) {
			if err := policy.ApplyConfig(location.FromBackend(c)); err != nil {
				logging.Error("Failed to apply dynamic config", zap.Error(err))
			}
		},
	})
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logging.Info("LocalzPush initialized",
		zap.String("version", version.Full()),
		zap.String("environment", cfg.Environment),
		zap.String("region", cfg.RegionCode.String()),
		zap.String("host", cfg.Host),
		zap.String("device_id", reg.DeviceID()),
	)

	return &Service{
		resolver:   resolver,
		store:      st,
		client:     client,
		dispatcher: dispatcher,
		registrar:  reg,
		policy:     policy,
		locations:  opts.LocationProvider,
		background: opts.BackgroundRefresh,
		now:        now,
	}, nil
}

// Start asks for push permission; a no-op once push is enabled
func (s *Service) Start(ctx context.Context) error {
	return s.registrar.Start(ctx)
}

// DeviceRegisteredWithToken hands the OS push token to the SDK. The backend
// call runs in the background; the observer hears about the outcome.
func (s *Service) DeviceRegisteredWithToken(token string) error {
	return s.registrar.RegisterToken(token, "")
}

// DeviceRegisteredWithTokenAndName is DeviceRegisteredWithToken with a
// device name
func (s *Service) DeviceRegisteredWithTokenAndName(token, name string) error {
	return s.registrar.RegisterToken(token, name)
}

// DeviceRegistrationFailed reports that the OS could not produce a token
func (s *Service) DeviceRegistrationFailed(err error) error {
	return s.registrar.HandleRegistrationFailure(err)
}

// SetDeviceName renames the device, updating the backend when registered
func (s *Service) SetDeviceName(name string) error {
	return s.registrar.SetDeviceName(name)
}

// SetObserver replaces the observer
func (s *Service) SetObserver(observer any) {
	s.dispatcher.SetObserver(observer)
}

// Wait blocks until background registration calls and their events are done
func (s *Service) Wait() {
	s.registrar.Wait()
}

// Close waits for in-flight calls and releases resources. The Service must
// not be used afterwards.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.registrar.Close()
		logging.Sync()
	})
	return err
}

// IsStarted reports whether Start has completed
func (s *Service) IsStarted() bool { return s.registrar.IsStarted() }

// IsPushNotificationEnabled reports whether push permission was granted
func (s *Service) IsPushNotificationEnabled() bool { return s.registrar.IsPushEnabled() }

// IsLocationServicesEnabledOnDevice reports the OS-wide location switch
func (s *Service) IsLocationServicesEnabledOnDevice() bool {
	return s.locations != nil && s.locations.ServicesEnabled()
}

// IsLocationServicesAuthorized reports whether this app may use location
func (s *Service) IsLocationServicesAuthorized() bool {
	return s.locations != nil && s.locations.Authorization().Authorized()
}

// IsBackgroundRefreshEnabled reports the OS background refresh setting
func (s *Service) IsBackgroundRefreshEnabled() bool {
	return s.background != nil && s.background.BackgroundRefreshEnabled()
}

// IsLocationTrackingEnabled reports whether EnableLocationServices succeeded
func (s *Service) IsLocationTrackingEnabled() bool {
	return store.GetBool(s.store, store.KeyLocationEnabled)
}

// DeviceID returns the persisted device id
func (s *Service) DeviceID() string { return s.registrar.DeviceID() }

// DeviceName returns the device name
func (s *Service) DeviceName() string { return s.registrar.DeviceName() }

// DeviceToken returns the last token accepted by the backend
func (s *Service) DeviceToken() string { return s.registrar.Token() }

// State returns the registration state
func (s *Service) State() State { return s.registrar.State() }

// SDKVersion returns the SDK version string
func (s *Service) SDKVersion() string { return version.SDK }

// Config returns the effective configuration
func (s *Service) Config() Config { return s.resolver.Effective() }

// DynamicConfig returns the tracking policy last issued by the backend
func (s *Service) DynamicConfig() DynamicConfig { return s.policy.Config() }
