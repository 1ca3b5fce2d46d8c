package core

import (
	"time"

	"pkt.systems/wheelhouse/schema"
)

// Settings exposes the tunables the engine polls. Implementations must
// return current values on every call; the engine never caches them, so a
// configuration change takes effect on the next sweep or hide event.
type Settings interface {
	Eviction() EvictionSettings
	SuspendOnHide() SuspendSettings
	LoadStrategy() schema.LoadStrategy
}

// EvictionSettings controls the periodic idle sweep.
type EvictionSettings struct {
	Enabled              bool
	IdleThreshold        time.Duration
	SweepInterval        time.Duration
	ExcludeActiveProfile bool
}

// SuspendSettings controls the deferred bulk eviction on window hide.
type SuspendSettings struct {
	Enabled        bool
	Delay          time.Duration
	KeepLastActive bool
}

// DefaultIdleThreshold is applied when no threshold is configured.
const DefaultIdleThreshold = 30 * time.Minute

// DefaultSweepInterval is applied when no interval is configured.
const DefaultSweepInterval = time.Minute

// DefaultSuspendDelay is applied when no hide delay is configured.
const DefaultSuspendDelay = 5 * time.Second

// StaticSettings is a fixed-value Settings implementation.
type StaticSettings struct {
	EvictionSettings EvictionSettings
	SuspendSettings  SuspendSettings
	Strategy         schema.LoadStrategy
}

// Eviction implements Settings.
func (s StaticSettings) Eviction() EvictionSettings { return s.EvictionSettings }

// SuspendOnHide implements Settings.
func (s StaticSettings) SuspendOnHide() SuspendSettings { return s.SuspendSettings }

// LoadStrategy implements Settings.
func (s StaticSettings) LoadStrategy() schema.LoadStrategy {
	if s.Strategy == "" {
		return schema.LoadLastActive
	}
	return s.Strategy
}
