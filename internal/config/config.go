// Package config provides configuration management for the key-value store.
// It loads settings from a YAML file and a .env file, with thread-safe
// singleton access. CLI flags on top of LoadConfig's result take final
// precedence (see cmd/kvs-server).
package config

import (
	"log/slog"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration values.
type Config struct {
	DATA_DIR             string `yaml:"DATA_DIR"`             // Directory where the engine's log/index/marker files live
	ADDR                 string `yaml:"ADDR"`                 // TCP address the server binds to
	ENGINE               string `yaml:"ENGINE"`               // "kvs", "sled", or "auto"
	POOL_KIND            string `yaml:"POOL_KIND"`            // "naive", "shared-queue", or "group"
	POOL_SIZE            uint32 `yaml:"POOL_SIZE"`            // Worker count for the pool
	BATCH_SIZE           uint32 `yaml:"BATCH_SIZE"`            // Buffer size threshold for auto-flush
	SYNC_INTERVAL        uint32 `yaml:"SYNC_INTERVAL"`        // Seconds between forced fsyncs
	COMPACTION_THRESHOLD uint64 `yaml:"COMPACTION_THRESHOLD"` // Redundant bytes that trigger compaction
}

// Default returns the configuration used when no config.yml is present.
func Default() *Config {
	return &Config{
		DATA_DIR:             ".",
		ADDR:                 "127.0.0.1:4000",
		ENGINE:               "auto",
		POOL_KIND:            "shared-queue",
		POOL_SIZE:            4,
		BATCH_SIZE:           4096,
		SYNC_INTERVAL:        5,
		COMPACTION_THRESHOLD: 1 << 20,
	}
}

var (
	appConfig *Config
	once      sync.Once
	initErr   error
)

// configPath is where LoadConfig looks for the YAML file. Tests and
// alternate entry points may override it before calling LoadConfig.
var configPath = "config.yml"

// LoadConfig loads values from .env (optional) and config.yml (optional;
// missing file falls back to Default()). It uses sync.Once so repeated
// calls across the process return the same instance. Environment
// variables referenced in the YAML are expanded with os.ExpandEnv.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("config: no .env file found or error loading it", "error", err)
		} else {
			slog.Debug("config: .env file loaded successfully")
		}

		cfg := Default()

		raw, err := os.ReadFile(configPath)
		if err != nil {
			slog.Debug("config: no config.yml found, using defaults", "error", err)
			appConfig = cfg
			return
		}

		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			initErr = err
			return
		}
		appConfig = cfg
	})
	if initErr != nil {
		return nil, initErr
	}
	return appConfig, nil
}

// GetConfig returns the singleton configuration instance.
// Panics if configuration has not been loaded yet. This function should
// only be called after LoadConfig has been successfully called.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded - call LoadConfig() first")
	}
	return appConfig
}
