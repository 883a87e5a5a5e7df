// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Upper bound for a raw image body on /api/classify and /api/explain
	MaxBodyBytes = 16 << 20

	// Per-request classification budget
	ClassifyTimeout = 30 * time.Second

	// Per-connection sliding window for WebSocket messages
	RateLimitMessages = 30
	RateLimitWindow   = time.Second

	// WebSocket frames carry base64 image data, so allow more than the 32KB default
	WSReadLimit = 24 << 20
)
