package config

// Run defaults.
const (
	DefaultMinMatchScore = 0.8
	DefaultWhichTags     = "highest"
	DefaultDebugLevel    = "INFO"
	DefaultRedisStream   = "protocolqc:events"
)

// Worker defaults.
const (
	DefaultTemporalHostPort = "localhost:7233"
	DefaultNamespace        = "default"
	DefaultTaskQueue        = "protocolqc"
)

// DefaultOptions returns run options with defaults applied. Paths are left
// for the caller to set.
func DefaultOptions() Options {
	return Options{
		MinMatchScore: DefaultMinMatchScore,
		WhichTags:     DefaultWhichTags,
		DebugLevel:    DefaultDebugLevel,
		RedisStream:   DefaultRedisStream,
	}
}

// DefaultWorkerOptions returns worker options for a local Temporal server.
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		TemporalHostPort: DefaultTemporalHostPort,
		Namespace:        DefaultNamespace,
		TaskQueue:        DefaultTaskQueue,
		RedisStream:      DefaultRedisStream,
		DebugLevel:       DefaultDebugLevel,
	}
}
