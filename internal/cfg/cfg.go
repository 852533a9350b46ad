package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"forest-predictor/internal/common"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelPath    string
	SamplesPath  string
	DataPath     string
	ServerPort   int
	MetricsPort  int
	Workers      int
	TreeWorkers  int
	CacheSize    int
	WatchModel   bool
	LogLevel     string
	LogFile      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ConfigFile struct {
	Model struct {
		Path        string `yaml:"path"`
		Watch       bool   `yaml:"watch"`
		TreeWorkers int    `yaml:"treeWorkers"`
	} `yaml:"model"`

	Batch struct {
		SamplesPath string `yaml:"samplesPath"`
		Workers     int    `yaml:"workers"`
	} `yaml:"batch"`

	Server struct {
		Port         int    `yaml:"port"`
		CacheSize    *int   `yaml:"cacheSize"` // nil when unset; 0 disables the cache
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

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

	readTimeout, err := time.ParseDuration(config.Server.ReadTimeout)
	if err != nil {
		readTimeout = common.DefaultReadTimeout * time.Second
	}
	writeTimeout, err := time.ParseDuration(config.Server.WriteTimeout)
	if err != nil {
		writeTimeout = common.DefaultWriteTimeout * time.Second
	}

	settings := Settings{
		ModelPath:    getEnvOrDefault(common.EnvModelPath, orString(config.Model.Path, common.DefaultModelPath)),
		SamplesPath:  getEnvOrDefault(common.EnvSamplesPath, config.Batch.SamplesPath),
		DataPath:     getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ServerPort:   getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		MetricsPort:  getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		Workers:      getIntFromEnvOrConfig(common.EnvWorkers, config.Batch.Workers, common.DefaultWorkers),
		TreeWorkers:  getIntFromEnvOrConfig(common.EnvTreeWorkers, config.Model.TreeWorkers, common.DefaultTreeWorkers),
		CacheSize:    getIntFromEnvOrOptional(common.EnvCacheSize, config.Server.CacheSize, common.DefaultCacheSize),
		WatchModel:   getBoolFromEnvOrConfig(common.EnvWatchModel, config.Model.Watch),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, orString(config.Logging.Level, common.DefaultLogLevel)),
		LogFile:      getEnvOrDefault(common.EnvLogFile, config.Logging.File),
		ReadTimeout:  getDurationOrDefault(common.EnvReadTimeout, readTimeout),
		WriteTimeout: getDurationOrDefault(common.EnvWriteTimeout, writeTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelPath:    getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		SamplesPath:  os.Getenv(common.EnvSamplesPath), // optional
		DataPath:     os.Getenv(common.EnvDataPath),    // optional
		ServerPort:   getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		MetricsPort:  getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		Workers:      getIntOrDefault(common.EnvWorkers, common.DefaultWorkers),
		TreeWorkers:  getIntOrDefault(common.EnvTreeWorkers, common.DefaultTreeWorkers),
		CacheSize:    getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		WatchModel:   getBoolOrDefault(common.EnvWatchModel, false),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFile:      os.Getenv(common.EnvLogFile),
		ReadTimeout:  getDurationOrDefault(common.EnvReadTimeout, common.DefaultReadTimeout*time.Second),
		WriteTimeout: getDurationOrDefault(common.EnvWriteTimeout, common.DefaultWriteTimeout*time.Second),
	}

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

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
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

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// getIntFromEnvOrOptional is getIntFromEnvOrConfig for settings where an
// explicit zero in the file is meaningful.
func getIntFromEnvOrOptional(key string, configValue *int, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs range checks on every configuration value
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return errors.New(common.ErrMsgModelPathRequired)
	}

	if settings.ServerPort < common.MinPort || settings.ServerPort > common.MaxPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ServerPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ServerPort == settings.MetricsPort {
		return errors.New(common.ErrMsgPortsCollide)
	}

	if settings.Workers <= 0 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", common.MaxWorkers, settings.Workers)
	}
	if settings.TreeWorkers <= 0 || settings.TreeWorkers > common.MaxTreeWorkers {
		return fmt.Errorf("tree workers must be between 1 and %d, got %d", common.MaxTreeWorkers, settings.TreeWorkers)
	}
	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("cache size must be between 0 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 1m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 1m, got %v", settings.WriteTimeout)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
