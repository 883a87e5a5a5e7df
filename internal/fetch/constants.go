package fetch

import "time"

// Client defaults.
const (
	DefaultTimeout = 10 * time.Second
	// MaxBodyBytes caps a single image download.
	MaxBodyBytes = 16 << 20
	UserAgent    = "adscan/1"
)
