// Package orchestrator builds the detector and its collaborators from
// configuration and runs reference loading in the background.
package orchestrator

import "time"

const (
	// Redis namespace for cached verdicts; the detector adds a per-reference
	// fingerprint below it.
	CacheNamespace = "v1"

	// Budget for connecting to Redis at startup
	RedisDialTimeout = 5 * time.Second
)
