// Package version reports the build version embedded by the linker or
// recorded in module build info.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/wheelhouse"

// buildVersion is set via -ldflags "-X pkt.systems/wheelhouse/internal/version.buildVersion=...".
var buildVersion = ""

// String returns "<module> <version>", the form the version command and
// startup banner print.
func String() string {
	return Module() + " " + Current()
}

// Current returns the version string: the linker-injected value first,
// then the module version from build info, then a pseudo-version derived
// from VCS stamping. The +dirty suffix is stripped.
func Current() string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return strings.TrimSuffix(v, "+dirty")
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "v0.0.0-unknown"
	}
	if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
		return strings.TrimSuffix(v, "+dirty")
	}
	if v := vcsPseudoVersion(info); v != "" {
		return v
	}
	return "v0.0.0-unknown"
}

// Module returns the module path from build info when available.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// vcsPseudoVersion builds a v0.0.0 pseudo-version from the vcs.revision
// and vcs.time stamps, or "" when either is missing.
func vcsPseudoVersion(info *debug.BuildInfo) string {
	if info == nil {
		return ""
	}
	var revision, vcsTime string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}
	if revision == "" || vcsTime == "" {
		return ""
	}
	ts, err := time.Parse(time.RFC3339, vcsTime)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return "v0.0.0-" + ts.UTC().Format("20060102150405") + "-" + revision
}
