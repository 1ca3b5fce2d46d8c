package schema

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeServiceConfigDefaults(t *testing.T) {
	cfg, err := NormalizeServiceConfig(ServiceConfig{StateDir: t.TempDir()})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.DefaultProfile != "default" {
		t.Errorf("default profile = %q", cfg.DefaultProfile)
	}
	if cfg.NewTabURL != DefaultNewTabURL {
		t.Errorf("new tab url = %q", cfg.NewTabURL)
	}
	if cfg.RestoreAttachDelay != DefaultRestoreAttachDelay {
		t.Errorf("restore attach delay = %v", cfg.RestoreAttachDelay)
	}
}

func TestNormalizeServiceConfigKeepsValues(t *testing.T) {
	in := ServiceConfig{
		StateDir:           t.TempDir(),
		DefaultProfile:     "work",
		NewTabURL:          "https://start.example",
		RestoreAttachDelay: time.Second,
	}
	cfg, err := NormalizeServiceConfig(in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg != in {
		t.Errorf("config mutated: %+v", cfg)
	}
}

func TestNormalizeServiceConfigRejectsBadProfile(t *testing.T) {
	_, err := NormalizeServiceConfig(ServiceConfig{StateDir: t.TempDir(), DefaultProfile: "Bad Profile"})
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("err = %v, want ErrInvalidProfile", err)
	}
}
