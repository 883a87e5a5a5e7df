// Package rpc serves the gRPC health service for the detector.
package rpc

import "time"

const (
	// ServiceName is the health-checked service; "" reports the same status.
	ServiceName = "adscan.Detector"

	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// How often WatchReady polls the detector
	DefaultReadyInterval = 500 * time.Millisecond
)
