package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidProfile indicates an invalid profile identifier.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrInvalidURL indicates an unusable navigation URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidStrategy indicates an unknown load strategy.
	ErrInvalidStrategy = errors.New("invalid load strategy")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrTabExists indicates a tab id is already registered.
	ErrTabExists = errors.New("tab already exists")
	// ErrNoTabs indicates the registry holds no tabs.
	ErrNoTabs = errors.New("no tabs")
	// ErrSurfaceUnavailable indicates no surface provider is configured.
	ErrSurfaceUnavailable = errors.New("surface provider not configured")
	// ErrSurfaceFailed indicates the surface provider could not create or
	// attach a surface; the tab keeps its prior state.
	ErrSurfaceFailed = errors.New("surface operation failed")
)
