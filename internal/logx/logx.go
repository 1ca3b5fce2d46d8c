package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/schema"
)

type contextKey int

const (
	tabKey contextKey = iota
	profileKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab id if present.
func WithTab(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithTabProfile annotates the logger with tab and profile identifiers.
func WithTabProfile(ctx context.Context, tabID schema.TabID, profile schema.ProfileID) pslog.Logger {
	log := WithTab(ctx, tabID)
	if profile != "" {
		if current, ok := ctx.Value(profileKey).(schema.ProfileID); ok && current == profile {
			return log
		}
		log = log.With("profile", profile)
	}
	return log
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithProfile stores the profile marker on the context for log
// de-duplication.
func ContextWithProfile(ctx context.Context, profile schema.ProfileID) context.Context {
	if ctx == nil || profile == "" {
		return ctx
	}
	return context.WithValue(ctx, profileKey, profile)
}

// ContextWithTabLogger attaches the logger and tab marker to the context.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTab(ctx, tabID)
}
