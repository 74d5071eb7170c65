package constants

import "time"

// Application-wide constants
const (
	// Health check configuration
	MaxHealthCheckRetries    = 10
	HealthCheckRetryInterval = 200 * time.Millisecond
	HealthCheckTimeout       = 5 * time.Second

	// Server configuration
	DefaultPort             = "8080"
	GracefulShutdownTimeout = 5 * time.Second
	RequestTimeout          = 2 * time.Second

	// Storage configuration
	DefaultDatabaseName = "local_storage"
	StorageSQLite       = "sqlite"
	StorageMemory       = "memory"
	StorageNone         = "none"

	// Load generator configuration
	MillisecondsPerMinute = 60000
	LoadGenStartupDelay   = 100 * time.Millisecond

	// Telemetry configuration
	DefaultLogBufferSize = 1000
	DefaultStatsInterval = 1 * time.Second
	CLIRefreshInterval   = 2 * time.Second
)
