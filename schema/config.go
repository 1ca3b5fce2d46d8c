package schema

import (
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	StateDir       string
	DefaultProfile ProfileID
	NewTabURL      string
	// RestoreAttachDelay defers the foreground switch after restore so the
	// host display surface can finish initializing.
	RestoreAttachDelay time.Duration
}

// DefaultNewTabURL is the navigation target for tabs created without a URL.
const DefaultNewTabURL = "about:blank"

// DefaultRestoreAttachDelay is applied when none is configured.
const DefaultRestoreAttachDelay = 250 * time.Millisecond

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".wheelhouse", "state")
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = ProfileID("default")
	}
	if err := ValidateProfileID(cfg.DefaultProfile); err != nil {
		return ServiceConfig{}, err
	}
	if cfg.NewTabURL == "" {
		cfg.NewTabURL = DefaultNewTabURL
	}
	if cfg.RestoreAttachDelay <= 0 {
		cfg.RestoreAttachDelay = DefaultRestoreAttachDelay
	}
	return cfg, nil
}
