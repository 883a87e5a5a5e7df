package sampler

import "time"

// Sampling defaults.
const (
	DefaultInterval = 2000 * time.Millisecond
	DefaultDeadline = 5000 * time.Millisecond

	// SkipDisabled turns off perceptual-hash frame skipping.
	SkipDisabled = -1
)
