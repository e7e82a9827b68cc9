package common

import "time"

// Response contract
const (
	Currency        = "USD"
	TopFeatureCount = 10
)

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvBundleDir      = "BUNDLE_DIR"
	EnvReferencePath  = "REFERENCE_PATH"
	EnvPort           = "PORT"
	EnvDataPath       = "DATA_PATH"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvCacheSize      = "CACHE_SIZE"
	EnvWSReadLimit    = "WS_READ_LIMIT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvLogFile        = "LOG_FILE"
	EnvLogMaxSizeMB   = "LOG_MAX_SIZE_MB"
	EnvLogMaxBackups  = "LOG_MAX_BACKUPS"
	EnvLogMaxAgeDays  = "LOG_MAX_AGE_DAYS"
)

// Configuration defaults
const (
	DefaultBundleDir      = "models"
	DefaultPort           = 5000
	DefaultRequestTimeout = 5 * time.Second
	DefaultCacheSize      = 0
	DefaultWSReadLimit    = 64 * 1024
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogMaxSizeMB   = 100
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAgeDays  = 28
)

// Validation constants
const (
	MinPort           = 1
	MaxPort           = 65535
	MaxCacheSize      = 1_000_000
	MinWSReadLimit    = 1024
	MaxWSReadLimit    = 16 * 1024 * 1024
	MaxLogMaxSizeMB   = 10_000
	MaxRequestTimeout = 5 * time.Minute
)
