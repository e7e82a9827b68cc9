package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"autoprice/internal/common"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	BundleDir      string
	ReferencePath  string
	Port           int
	DataPath       string
	RequestTimeout time.Duration
	CacheSize      int
	WSReadLimit    int64
	Log            LogSettings
}

type LogSettings struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type ConfigFile struct {
	Model struct {
		BundleDir     string `yaml:"bundleDir"`
		ReferencePath string `yaml:"referencePath"`
		CacheSize     int    `yaml:"cacheSize"`
	} `yaml:"model"`

	Server struct {
		Port           int    `yaml:"port"`
		RequestTimeout string `yaml:"requestTimeout"`
		WSReadLimit    int64  `yaml:"wsReadLimit"`
	} `yaml:"server"`

	System struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"system"`

	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"logging"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout := common.DefaultRequestTimeout
	if config.Server.RequestTimeout != "" {
		timeout, err = time.ParseDuration(config.Server.RequestTimeout)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid requestTimeout %q: %w", config.Server.RequestTimeout, err)
		}
	}

	settings := Settings{
		BundleDir:      getEnvOrDefault(common.EnvBundleDir, orString(config.Model.BundleDir, common.DefaultBundleDir)),
		ReferencePath:  getEnvOrDefault(common.EnvReferencePath, config.Model.ReferencePath),
		Port:           getIntOrDefault(common.EnvPort, orInt(config.Server.Port, common.DefaultPort)),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, timeout),
		CacheSize:      getIntOrDefault(common.EnvCacheSize, config.Model.CacheSize),
		WSReadLimit:    getInt64OrDefault(common.EnvWSReadLimit, orInt64(config.Server.WSReadLimit, common.DefaultWSReadLimit)),
		Log: LogSettings{
			Level:      getEnvOrDefault(common.EnvLogLevel, orString(config.Logging.Level, common.DefaultLogLevel)),
			Format:     getEnvOrDefault(common.EnvLogFormat, orString(config.Logging.Format, common.DefaultLogFormat)),
			File:       getEnvOrDefault(common.EnvLogFile, config.Logging.File),
			MaxSizeMB:  getIntOrDefault(common.EnvLogMaxSizeMB, orInt(config.Logging.MaxSizeMB, common.DefaultLogMaxSizeMB)),
			MaxBackups: getIntOrDefault(common.EnvLogMaxBackups, orInt(config.Logging.MaxBackups, common.DefaultLogMaxBackups)),
			MaxAgeDays: getIntOrDefault(common.EnvLogMaxAgeDays, orInt(config.Logging.MaxAgeDays, common.DefaultLogMaxAgeDays)),
		},
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		BundleDir:      getEnvOrDefault(common.EnvBundleDir, common.DefaultBundleDir),
		ReferencePath:  os.Getenv(common.EnvReferencePath), // optional
		Port:           getIntOrDefault(common.EnvPort, common.DefaultPort),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout),
		CacheSize:      getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		WSReadLimit:    getInt64OrDefault(common.EnvWSReadLimit, common.DefaultWSReadLimit),
		Log: LogSettings{
			Level:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
			Format:     getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
			File:       os.Getenv(common.EnvLogFile),
			MaxSizeMB:  getIntOrDefault(common.EnvLogMaxSizeMB, common.DefaultLogMaxSizeMB),
			MaxBackups: getIntOrDefault(common.EnvLogMaxBackups, common.DefaultLogMaxBackups),
			MaxAgeDays: getIntOrDefault(common.EnvLogMaxAgeDays, common.DefaultLogMaxAgeDays),
		},
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orInt64(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true, "disabled": true,
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.BundleDir == "" {
		return fmt.Errorf("bundle directory cannot be empty")
	}

	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	if settings.RequestTimeout < 10*time.Millisecond || settings.RequestTimeout > common.MaxRequestTimeout {
		return fmt.Errorf("request timeout must be between 10ms and %v, got %v", common.MaxRequestTimeout, settings.RequestTimeout)
	}

	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("cache size must be between 0 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}

	if settings.WSReadLimit < common.MinWSReadLimit || settings.WSReadLimit > common.MaxWSReadLimit {
		return fmt.Errorf("websocket read limit must be between %d and %d bytes, got %d", common.MinWSReadLimit, common.MaxWSReadLimit, settings.WSReadLimit)
	}

	if !validLogLevels[settings.Log.Level] {
		return fmt.Errorf("invalid log level %q", settings.Log.Level)
	}
	if settings.Log.Format != "json" && settings.Log.Format != "console" {
		return fmt.Errorf("log format must be json or console, got %q", settings.Log.Format)
	}
	if settings.Log.MaxSizeMB <= 0 || settings.Log.MaxSizeMB > common.MaxLogMaxSizeMB {
		return fmt.Errorf("log max size must be between 1 and %d MB, got %d", common.MaxLogMaxSizeMB, settings.Log.MaxSizeMB)
	}
	if settings.Log.MaxBackups < 0 {
		return fmt.Errorf("log max backups cannot be negative, got %d", settings.Log.MaxBackups)
	}
	if settings.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log max age cannot be negative, got %d", settings.Log.MaxAgeDays)
	}

	return nil
}
