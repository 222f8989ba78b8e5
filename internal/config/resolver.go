package config

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/localz/localzpush-go/internal/region"
	"github.com/localz/localzpush-go/internal/sdkerrors"
	"github.com/localz/localzpush-go/internal/version"
)

// Well-known configuration keys. Any other key may be stored and resolved;
// only these feed the derived fields.
const (
	KeyRegion = "region"
	KeyHost   = "host"
	KeyDebug  = "debug"
	KeyDevEnv = "devEnv"
	KeyEnvID  = "envId"
	KeyEnvURL = "envUrl"
)

// Settings is what the host application passes at initialization
type Settings struct {
	ProjectID  string
	ProjectKey string

	// Environment selects a named environment; empty keeps the active one
	Environment string

	// Region forces a region code; zero leaves it to the environment
	Region region.Code

	// Host forces an API host, bypassing region resolution
	Host string

	// Debug forces debug logging on
	Debug bool

	// Advanced holds arbitrary keys written to the override layer
	Advanced map[string]any
}

// Config is the effective, typed configuration
type Config struct {
	ProjectID   string
	ProjectKey  string
	Environment string
	RegionCode  region.Code
	Host        string
	Debug       bool
	DevEnv      bool
	EnvID       string
	EnvURL      string
	SDKVersion  string
}

// Resolver merges built-in defaults, the active environment and runtime
// overrides. Derived fields are recomputed on every layer change. A change
// that would leave the derived fields invalid is rolled back and returned as
// an error.
type Resolver struct {
	mu sync.RWMutex

	envs      *Environments
	active    string
	overrides map[string]any

	projectID  string
	projectKey string

	derived Config
}

// NewResolver creates a resolver over envs (nil selects the built-in set)
func NewResolver(envs *Environments) (*Resolver, error) {
	if envs == nil {
		envs = DefaultEnvironments()
	}

	r := &Resolver{
		envs:      envs.clone(),
		active:    envs.Active,
		overrides: make(map[string]any),
	}
	if err := r.recompute(); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the override value if set, else the active environment's
// value, else the default. ok is false when no layer defines key.
func (r *Resolver) Resolve(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(key)
}

func (r *Resolver) resolveLocked(key string) (any, bool) {
	if v, ok := r.overrides[key]; ok {
		return v, true
	}
	if v, ok := r.envs.Environments[r.active][key]; ok {
		return v, true
	}
	v, ok := r.envs.Default[key]
	return v, ok
}

// SetOverride writes key to the override layer only
func (r *Resolver) SetOverride(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.overrides[key]
	r.overrides[key] = value
	if err := r.recompute(); err != nil {
		if had {
			r.overrides[key] = prev
		} else {
			delete(r.overrides, key)
		}
		return err
	}
	return nil
}

// ClearOverride removes key from the override layer
func (r *Resolver) ClearOverride(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.overrides[key]
	if !had {
		return nil
	}
	delete(r.overrides, key)
	if err := r.recompute(); err != nil {
		r.overrides[key] = prev
		return err
	}
	return nil
}

// Configure validates the project credentials and merges settings into the
// override layer. Nothing changes if it returns an error.
func (r *Resolver) Configure(s Settings) error {
	projectID := strings.TrimSpace(s.ProjectID)
	projectKey := strings.TrimSpace(s.ProjectKey)
	if projectID == "" {
		return sdkerrors.NewMissingCredentials("projectId")
	}
	if projectKey == "" {
		return sdkerrors.NewMissingCredentials("projectKey")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prevActive := r.active
	prevOverrides := maps.Clone(r.overrides)
	prevID, prevKey := r.projectID, r.projectKey

	rollback := func() {
		r.active = prevActive
		r.overrides = prevOverrides
		r.projectID, r.projectKey = prevID, prevKey
	}

	if s.Environment != "" {
		if _, ok := r.envs.Environments[s.Environment]; !ok {
			return unknownEnvironment(s.Environment)
		}
		r.active = s.Environment
	}

	for k, v := range s.Advanced {
		r.overrides[k] = v
	}
	if s.Region != 0 {
		r.overrides[KeyRegion] = int(s.Region)
	}
	if s.Host != "" {
		r.overrides[KeyHost] = s.Host
	}
	if s.Debug {
		r.overrides[KeyDebug] = true
	}

	r.projectID, r.projectKey = projectID, projectKey

	if err := r.recompute(); err != nil {
		rollback()
		return err
	}
	return nil
}

// SelectEnvironment switches the active environment layer
func (r *Resolver) SelectEnvironment(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.envs.Environments[name]; !ok {
		return unknownEnvironment(name)
	}

	prev := r.active
	r.active = name
	if err := r.recompute(); err != nil {
		r.active = prev
		return err
	}
	return nil
}

// Effective returns a copy of the derived configuration
func (r *Resolver) Effective() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.derived
}

// Overrides returns a copy of the override layer
func (r *Resolver) Overrides() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.overrides)
}

// recompute rebuilds the derived fields; callers hold the write lock
func (r *Resolver) recompute() error {
	code := region.AU
	if v, ok := r.resolveLocked(KeyRegion); ok {
		c, err := toRegion(v)
		if err != nil {
			return err
		}
		code = c
	}

	host := ""
	if v, ok := r.resolveLocked(KeyHost); ok {
		host = toString(v)
	}
	if host == "" {
		h, err := region.HostFor(code)
		if err != nil {
			return err
		}
		host = h
	}

	debug, _ := r.resolveLocked(KeyDebug)
	devEnv, _ := r.resolveLocked(KeyDevEnv)
	envID, _ := r.resolveLocked(KeyEnvID)
	envURL, _ := r.resolveLocked(KeyEnvURL)

	r.derived = Config{
		ProjectID:   r.projectID,
		ProjectKey:  r.projectKey,
		Environment: r.active,
		RegionCode:  code,
		Host:        host,
		Debug:       toBool(debug),
		DevEnv:      toBool(devEnv) || code.IsDev(),
		EnvID:       toString(envID),
		EnvURL:      toString(envURL),
		SDKVersion:  version.SDK,
	}
	return nil
}

func unknownEnvironment(name string) error {
	return sdkerrors.NewInvalidConfig(fmt.Sprintf("unknown environment %q", name), nil)
}

func toRegion(v any) (region.Code, error) {
	switch x := v.(type) {
	case region.Code:
		return x, nil
	case int:
		return region.Code(x), nil
	case int64:
		return region.Code(x), nil
	case float64:
		return region.Code(int(x)), nil
	case string:
		return region.ParseRegion(x)
	default:
		return 0, sdkerrors.NewInvalidConfig(fmt.Sprintf("region has unsupported type %T", v), nil)
	}
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(x)
		return err == nil && b
	case int:
		return x != 0
	default:
		return false
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
