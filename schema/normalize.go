package schema

import "strings"

// ValidateProfileID ensures a profile id matches [a-z0-9._-] with no
// normalization. Profile ids name on-disk partitions, so the character set
// is deliberately narrow.
func ValidateProfileID(profile ProfileID) error {
	raw := string(profile)
	if raw == "" {
		return ErrInvalidProfile
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidProfile
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidProfile
	}
	return nil
}

// NormalizeLoadStrategy validates and normalizes a load strategy value.
// An empty value selects the default strategy.
func NormalizeLoadStrategy(value string) (LoadStrategy, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	switch trimmed {
	case "":
		return LoadLastActive, nil
	case string(LoadAll):
		return LoadAll, nil
	case string(LoadActiveProfile), "activeprofile", "active_profile":
		return LoadActiveProfile, nil
	case string(LoadLastActive), "lastactiveonly", "last-active-only", "last_active":
		return LoadLastActive, nil
	default:
		return "", ErrInvalidStrategy
	}
}

// NormalizeURL trims a navigation URL and rejects values the rendering
// surface cannot act on. Scheme validation is left to the surface provider.
func NormalizeURL(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", ErrInvalidURL
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return "", ErrInvalidURL
	}
	return trimmed, nil
}
