package location

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/store"
)

// DynamicConfig is the server-issued tracking policy
type DynamicConfig struct {
	Enabled     bool          `json:"enabled"`
	MinInterval time.Duration `json:"minInterval"`
	// MinDistance in metres; zero disables the distance gate
	MinDistance float64 `json:"minDistance"`
}

// FromBackend converts the wire policy
func FromBackend(c *backend.DynamicConfig) DynamicConfig {
	if c == nil {
		return DynamicConfig{}
	}
	return DynamicConfig{
		Enabled:     c.Enabled,
		MinInterval: time.Duration(c.MinPeriodSeconds) * time.Second,
		MinDistance: c.DistanceMeters,
	}
}

// Policy decides whether a location update should be sent. It owns the last
// report date and location and only ever writes them together.
type Policy struct {
	mu    sync.Mutex
	store store.Store
}

// NewPolicy creates a policy backed by s
func NewPolicy(s store.Store) *Policy {
	return &Policy{store: s}
}

// Config returns the persisted policy; the zero value (disabled) if none
func (p *Policy) Config() DynamicConfig {
	raw, ok := p.store.Get(store.KeyDynamicConfig)
	if !ok {
		return DynamicConfig{}
	}
	var cfg DynamicConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		logging.Warn("Ignoring unreadable dynamic config", zap.Error(err))
		return DynamicConfig{}
	}
	return cfg
}

// ApplyConfig persists a new policy. The last report date and location are
// kept so a policy refresh does not trigger an immediate report.
func (p *Policy) ApplyConfig(cfg DynamicConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode dynamic config: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.store.Update(func(tx *store.Tx) error {
		tx.Set(store.KeyDynamicConfig, string(data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist dynamic config: %w", err)
	}

	logging.Info("Dynamic tracking policy applied",
		zap.Bool("enabled", cfg.Enabled),
		zap.Duration("min_interval", cfg.MinInterval),
		zap.Float64("min_distance_m", cfg.MinDistance),
	)
	return nil
}

// LastReport returns the last recorded report, if any
func (p *Policy) LastReport() (Location, time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReportLocked()
}

func (p *Policy) lastReportLocked() (Location, time.Time, bool) {
	at, hasDate := store.GetTime(p.store, store.KeyLastTrackingDate)
	raw, hasLoc := p.store.Get(store.KeyLastLocation)
	if !hasDate || !hasLoc {
		return Location{}, at, false
	}
	var loc Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return Location{}, at, false
	}
	return loc, at, true
}

// ShouldReport is true iff tracking is enabled, the minimum interval has
// passed since the last report, and the device moved at least the minimum
// distance. Without a previous report only the enabled flag matters.
func (p *Policy) ShouldReport(loc Location, now time.Time) bool {
	cfg := p.Config()
	if !cfg.Enabled {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	at, hasDate := store.GetTime(p.store, store.KeyLastTrackingDate)
	if hasDate && now.Sub(at) < cfg.MinInterval {
		return false
	}

	last, _, hasLoc := p.lastReportLocked()
	if hasLoc && cfg.MinDistance > 0 && Distance(last, loc) < cfg.MinDistance {
		return false
	}
	return true
}

// RecordReport stores loc and now as the last report in one transaction
func (p *Policy) RecordReport(loc Location, now time.Time) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.store.Update(func(tx *store.Tx) error {
		tx.SetTime(store.KeyLastTrackingDate, now)
		tx.Set(store.KeyLastLocation, string(data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record location report: %w", err)
	}
	return nil
}
