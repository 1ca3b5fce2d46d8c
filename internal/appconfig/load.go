package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/wheelhouse/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("default_profile", cfg.DefaultProfile)
	v.SetDefault("new_tab_url", cfg.NewTabURL)
	v.SetDefault("eviction.enabled", cfg.Eviction.Enabled)
	v.SetDefault("eviction.idle_timeout_minutes", cfg.Eviction.IdleTimeoutMinutes)
	v.SetDefault("eviction.sweep_interval_seconds", cfg.Eviction.SweepIntervalSeconds)
	v.SetDefault("eviction.exclude_active_profile", cfg.Eviction.ExcludeActiveProfile)
	v.SetDefault("suspend_on_hide.enabled", cfg.SuspendOnHide.Enabled)
	v.SetDefault("suspend_on_hide.delay_seconds", cfg.SuspendOnHide.DelaySeconds)
	v.SetDefault("suspend_on_hide.keep_last_active", cfg.SuspendOnHide.KeepLastActive)
	v.SetDefault("restore.strategy", cfg.Restore.Strategy)
	v.SetDefault("restore.attach_delay_millis", cfg.Restore.AttachDelayMillis)
	v.SetDefault("surface.exec_path", cfg.Surface.ExecPath)
	v.SetDefault("surface.headless", cfg.Surface.Headless)
	v.SetDefault("surface.partition_dir", cfg.Surface.PartitionDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.replay_events", cfg.HTTP.ReplayEvents)
	v.SetDefault("logging.disable_access_log", cfg.Logging.DisableAccessLog)

	// A missing config file means defaults apply; anything else is fatal.
	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// defaults
		} else if errors.Is(err, fs.ErrNotExist) {
			// defaults
		} else {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the semantic constraints a config must satisfy.
func Validate(cfg Config) error {
	if err := schema.ValidateProfileID(schema.ProfileID(cfg.DefaultProfile)); err != nil {
		return fmt.Errorf("default_profile: %w", err)
	}
	if _, err := schema.NormalizeLoadStrategy(cfg.Restore.Strategy); err != nil {
		return fmt.Errorf("restore.strategy %q: %w", cfg.Restore.Strategy, err)
	}
	if cfg.Eviction.IdleTimeoutMinutes <= 0 {
		return fmt.Errorf("eviction.idle_timeout_minutes must be positive, got %d", cfg.Eviction.IdleTimeoutMinutes)
	}
	if cfg.Eviction.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("eviction.sweep_interval_seconds must be positive, got %d", cfg.Eviction.SweepIntervalSeconds)
	}
	if cfg.SuspendOnHide.DelaySeconds < 0 {
		return fmt.Errorf("suspend_on_hide.delay_seconds must not be negative, got %d", cfg.SuspendOnHide.DelaySeconds)
	}
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if cfg.HTTP.ReplayEvents < 0 {
		return fmt.Errorf("http.replay_events must not be negative, got %d", cfg.HTTP.ReplayEvents)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.NewTabURL = expandEnv(cfg.NewTabURL)
	cfg.Surface.ExecPath = expandEnv(cfg.Surface.ExecPath)
	cfg.Surface.PartitionDir = expandEnv(cfg.Surface.PartitionDir)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
