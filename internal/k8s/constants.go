package k8s

import "time"

const (
	// Default performance settings for API requests. Exec streams are not
	// bounded by DefaultTimeout.
	DefaultQPSLimit   = 20.0
	DefaultBurstLimit = 30
	DefaultTimeout    = 30 // seconds

	// DefaultShell runs every remote command string.
	DefaultShell = "/bin/sh"

	// Pod readiness polling.
	DefaultPodReadyPollInterval = 2 * time.Second
	DefaultPodReadyTimeout      = 300 * time.Second
)
