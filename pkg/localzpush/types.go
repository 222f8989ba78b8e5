package localzpush

import (
	"io"

	"github.com/localz/localzpush-go/internal/config"
	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/location"
	"github.com/localz/localzpush-go/internal/region"
	"github.com/localz/localzpush-go/internal/registrar"
	"github.com/localz/localzpush-go/internal/sdkerrors"
	"github.com/localz/localzpush-go/internal/store"
)

type (
	// Settings is what the host passes to New
	Settings = config.Settings
	// Config is the effective configuration
	Config = config.Config
	// Environments is a set of named configuration layers
	Environments = config.Environments

	RegionCode = region.Code
	State      = registrar.State

	Location      = location.Location
	DynamicConfig = location.DynamicConfig
	Authorization = location.Authorization

	AppState    = events.AppState
	FetchResult = events.FetchResult

	// Error is the SDK's typed error
	Error     = sdkerrors.Error
	ErrorType = sdkerrors.ErrorType

	// Store persists SDK state across restarts
	Store = store.Store

	// PushAuthorizer asks the OS for push permission
	PushAuthorizer = registrar.PushAuthorizer
	// LocationProvider is the OS location service
	LocationProvider = location.Provider
)

// Observer capabilities; implement any subset
type (
	RegistrationObserver        = events.RegistrationObserver
	RegistrationFailureObserver = events.RegistrationFailureObserver
	UpdateFailureObserver       = events.UpdateFailureObserver
	NotificationObserver        = events.NotificationObserver
	ErrorObserver               = events.ErrorObserver
)

// BackgroundRefresh reports the OS background refresh setting
type BackgroundRefresh interface {
	BackgroundRefreshEnabled() bool
}

const (
	RegionAU  = region.AU
	RegionEU  = region.EU
	RegionUS  = region.US
	RegionDev = region.Dev
)

const (
	StateNotStarted     = registrar.NotStarted
	StatePushEnabled    = registrar.PushEnabled
	StateRegistered     = registrar.Registered
	StateUpdateFailed   = registrar.UpdateFailed
	StateRegisterFailed = registrar.RegisterFailed
)

const (
	AppStateActive     = events.AppStateActive
	AppStateInactive   = events.AppStateInactive
	AppStateBackground = events.AppStateBackground
)

const (
	FetchNoData  = events.FetchNoData
	FetchNewData = events.FetchNewData
	FetchFailed  = events.FetchFailed
)

const (
	AuthorizationNotDetermined = location.AuthorizationNotDetermined
	AuthorizationDenied        = location.AuthorizationDenied
	AuthorizationRestricted    = location.AuthorizationRestricted
	AuthorizationWhenInUse     = location.AuthorizationWhenInUse
	AuthorizationAlways        = location.AuthorizationAlways
)

// Sentinels for errors.Is
var (
	ErrMissingCredentials = sdkerrors.ErrMissingCredentials
	ErrUnknownRegion      = sdkerrors.ErrUnknownRegion
	ErrInvalidConfig      = sdkerrors.ErrInvalidConfig
	ErrNetwork            = sdkerrors.ErrNetwork
	ErrRejectedByServer   = sdkerrors.ErrRejectedByServer
	ErrPermissionDenied   = sdkerrors.ErrPermissionDenied
	ErrClosed             = registrar.ErrClosed
)

// IsConfigError reports whether err is fatal to initialization
func IsConfigError(err error) bool { return sdkerrors.IsConfigError(err) }

// IsRegistrationError reports whether err came from a register or update call
func IsRegistrationError(err error) bool { return sdkerrors.IsRegistrationError(err) }

// IsLocationError reports whether err came from the location path
func IsLocationError(err error) bool { return sdkerrors.IsLocationError(err) }

// ParseRegion maps a region name or numeric code to a RegionCode
func ParseRegion(name string) (RegionCode, error) { return region.ParseRegion(name) }

// HostFor returns the API host for a region code
func HostFor(code RegionCode) (string, error) { return region.HostFor(code) }

// DefaultEnvironments returns the built-in environment set
func DefaultEnvironments() *Environments { return config.DefaultEnvironments() }

// LoadEnvironments reads an environment set from YAML
func LoadEnvironments(r io.Reader) (*Environments, error) { return config.LoadEnvironments(r) }

// OpenFileStore opens a YAML-backed store at path; DefaultStorePath gives the
// per-user location
func OpenFileStore(path string) (Store, error) {
	fs, err := store.OpenFileStore(path)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// DefaultStorePath returns the per-user state file path
func DefaultStorePath() (string, error) { return store.DefaultPath() }

// NewMemoryStore returns a non-persistent store
func NewMemoryStore() Store { return store.NewMemoryStore(nil) }
