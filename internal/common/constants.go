package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvModelPath    = "FOREST_MODEL_PATH"
	EnvSamplesPath  = "FOREST_SAMPLES_PATH"
	EnvDataPath     = "DATA_PATH"
	EnvServerPort   = "SERVER_PORT"
	EnvMetricsPort  = "METRICS_PORT"
	EnvWorkers      = "WORKERS"
	EnvTreeWorkers  = "TREE_WORKERS"
	EnvCacheSize    = "CACHE_SIZE"
	EnvWatchModel   = "WATCH_MODEL"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFile      = "LOG_FILE"
	EnvReadTimeout  = "READ_TIMEOUT"
	EnvWriteTimeout = "WRITE_TIMEOUT"
)

// Configuration defaults
const (
	DefaultModelPath    = "models/model.json"
	DefaultServerPort   = 8090
	DefaultMetricsPort  = 9090
	DefaultWorkers      = 4
	DefaultTreeWorkers  = 1
	DefaultCacheSize    = 4096
	DefaultLogLevel     = "info"
	DefaultReadTimeout  = 10 // seconds
	DefaultWriteTimeout = 10 // seconds
)

// Validation constants
const (
	MinPort        = 1024
	MaxPort        = 65535
	MaxWorkers     = 1024
	MaxTreeWorkers = 256
	MaxCacheSize   = 1 << 20
)

// Common error messages
const (
	ErrMsgModelPathRequired = "model path is required"
	ErrMsgPortsCollide      = "server port and metrics port must differ"
)
