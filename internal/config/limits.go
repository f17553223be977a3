package config

const (
	// MaxGroupNameLength is the maximum length for group names.
	// Fits a PostgreSQL VARCHAR(255).
	MaxGroupNameLength = 255

	// MaxInsertErrorBody caps how much of a failed store response is echoed to the caller
	MaxInsertErrorBody = 500

	// TrackerQueueSize bounds the outbound analytics queue; overflow is dropped
	TrackerQueueSize = 200
)
