package appconfig

import (
	"sync"
	"time"

	"pkt.systems/wheelhouse/core"
	"pkt.systems/wheelhouse/schema"
)

// LiveSettings adapts a Config into the settings interface the engine
// polls. Update swaps the config atomically; the engine reads fresh values
// on every sweep and hide event, so an update takes effect without a
// restart.
type LiveSettings struct {
	mu  sync.RWMutex
	cfg Config
}

// NewLiveSettings wraps a loaded config.
func NewLiveSettings(cfg Config) *LiveSettings {
	return &LiveSettings{cfg: cfg}
}

// Update replaces the wrapped config.
func (s *LiveSettings) Update(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Eviction implements core.Settings.
func (s *LiveSettings) Eviction() core.EvictionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.EvictionSettings{
		Enabled:              s.cfg.Eviction.Enabled,
		IdleThreshold:        time.Duration(s.cfg.Eviction.IdleTimeoutMinutes) * time.Minute,
		SweepInterval:        time.Duration(s.cfg.Eviction.SweepIntervalSeconds) * time.Second,
		ExcludeActiveProfile: s.cfg.Eviction.ExcludeActiveProfile,
	}
}

// SuspendOnHide implements core.Settings.
func (s *LiveSettings) SuspendOnHide() core.SuspendSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SuspendSettings{
		Enabled:        s.cfg.SuspendOnHide.Enabled,
		Delay:          time.Duration(s.cfg.SuspendOnHide.DelaySeconds) * time.Second,
		KeepLastActive: s.cfg.SuspendOnHide.KeepLastActive,
	}
}

// LoadStrategy implements core.Settings.
func (s *LiveSettings) LoadStrategy() schema.LoadStrategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, err := schema.NormalizeLoadStrategy(s.cfg.Restore.Strategy)
	if err != nil {
		return schema.LoadLastActive
	}
	return strategy
}

// ServiceConfig derives the core service config from the app config.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:           c.StateDir,
		DefaultProfile:     schema.ProfileID(c.DefaultProfile),
		NewTabURL:          c.NewTabURL,
		RestoreAttachDelay: time.Duration(c.Restore.AttachDelayMillis) * time.Millisecond,
	}
}
