package config

import "time"

// Diff Settings
const (
	// DefaultMergeGap is the unchanged run length below which two changed runs on a row merge
	DefaultMergeGap = 3
)

// Presenter Settings
const (
	// DefaultPresentMode draws on the alternate screen
	DefaultPresentMode = ModeFullscreen

	// DefaultInlineHeight is the region height when inline mode is chosen without a height
	DefaultInlineHeight = 10

	// DefaultSync lets the capability probe decide the frame bracket
	DefaultSync = "auto"

	// DefaultColor lets the capability probe decide the color tier
	DefaultColor = "auto"
)

// Resize Coalescing
const (
	// DefaultSteadyDelay is the quiescence before committing an isolated resize (~1 frame)
	DefaultSteadyDelay = 16 * time.Millisecond

	// DefaultBurstDelay is the quiescence before committing during an interactive drag
	DefaultBurstDelay = 60 * time.Millisecond

	// DefaultHardDeadline caps the wait since the first buffered event
	DefaultHardDeadline = 250 * time.Millisecond

	// DefaultBurstInterval is the inter-arrival mean below which events form a burst
	DefaultBurstInterval = 50 * time.Millisecond

	// DefaultHazardLambda is the expected number of events between regime changes
	DefaultHazardLambda = 50.0
)

// Logging
const (
	DefaultLogLevel = "info"
)

// Environment overrides, applied after the file
const (
	EnvFullLayout = "FRAMEKIT_FULL_LAYOUT"
	EnvSync       = "FRAMEKIT_SYNC"
	EnvColor      = "FRAMEKIT_COLOR"
	EnvLogLevel   = "FRAMEKIT_LOG_LEVEL"
)
