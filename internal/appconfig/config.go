package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/wheelhouse/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion  int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir       string         `mapstructure:"state_dir" yaml:"state_dir"`
	DefaultProfile string         `mapstructure:"default_profile" yaml:"default_profile"`
	NewTabURL      string         `mapstructure:"new_tab_url" yaml:"new_tab_url"`
	Eviction       EvictionConfig `mapstructure:"eviction" yaml:"eviction"`
	SuspendOnHide  SuspendConfig  `mapstructure:"suspend_on_hide" yaml:"suspend_on_hide"`
	Restore        RestoreConfig  `mapstructure:"restore" yaml:"restore"`
	Surface        SurfaceConfig  `mapstructure:"surface" yaml:"surface"`
	HTTP           HTTPConfig     `mapstructure:"http" yaml:"http"`
	Logging        LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EvictionConfig controls the periodic idle-tab sweep.
type EvictionConfig struct {
	Enabled              bool `mapstructure:"enabled" yaml:"enabled"`
	IdleTimeoutMinutes   int  `mapstructure:"idle_timeout_minutes" yaml:"idle_timeout_minutes"`
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
	ExcludeActiveProfile bool `mapstructure:"exclude_active_profile" yaml:"exclude_active_profile"`
}

// SuspendConfig controls the suspend-on-hide behavior.
type SuspendConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	DelaySeconds   int  `mapstructure:"delay_seconds" yaml:"delay_seconds"`
	KeepLastActive bool `mapstructure:"keep_last_active" yaml:"keep_last_active"`
}

// RestoreConfig controls session restore at startup.
type RestoreConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
	// AttachDelayMillis defers the foreground switch after restore.
	AttachDelayMillis int `mapstructure:"attach_delay_millis" yaml:"attach_delay_millis"`
}

// SurfaceConfig configures the browser surface backend.
type SurfaceConfig struct {
	ExecPath     string `mapstructure:"exec_path" yaml:"exec_path"`
	Headless     bool   `mapstructure:"headless" yaml:"headless"`
	PartitionDir string `mapstructure:"partition_dir" yaml:"partition_dir"`
}

// HTTPConfig configures the control HTTP server.
type HTTPConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	ReplayEvents int    `mapstructure:"replay_events" yaml:"replay_events"`
}

// LoggingConfig controls request logging behavior.
type LoggingConfig struct {
	DisableAccessLog bool `mapstructure:"disable_access_log" yaml:"disable_access_log"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion:  CurrentConfigVersion,
		StateDir:       filepath.Join(home, ".wheelhouse", "state"),
		DefaultProfile: "default",
		NewTabURL:      schema.DefaultNewTabURL,
		Eviction: EvictionConfig{
			Enabled:              true,
			IdleTimeoutMinutes:   30,
			SweepIntervalSeconds: 60,
			ExcludeActiveProfile: false,
		},
		SuspendOnHide: SuspendConfig{
			Enabled:        false,
			DelaySeconds:   5,
			KeepLastActive: true,
		},
		Restore: RestoreConfig{
			Strategy:          string(schema.LoadLastActive),
			AttachDelayMillis: 250,
		},
		Surface: SurfaceConfig{
			ExecPath:     "",
			Headless:     false,
			PartitionDir: filepath.Join(home, ".wheelhouse", "partitions"),
		},
		HTTP: HTTPConfig{
			Addr:         "127.0.0.1:27490",
			ReplayEvents: 64,
		},
		Logging: LoggingConfig{
			DisableAccessLog: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wheelhouse", "config.yaml"), nil
}
