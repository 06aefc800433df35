package redline

import (
	"compress/flate"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Config contains all configuration options for the redline engine.
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off).
	LogLevel string `toml:"log_level"`
	// Strict selects the apply failure policy: abort on a missing operation
	// target rather than degrading it to a zero-effect report entry.
	Strict bool `toml:"strict"`
	// CompressionLevel is the DEFLATE level used when re-encoding a package.
	// Zero selects the compress/flate default.
	CompressionLevel int `toml:"compression_level"`
	// ValidatePayloads gates set-xml payloads and spliced registry parts on
	// XML well-formedness before they are written.
	ValidatePayloads bool `toml:"validate_payloads"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func initGlobalConfig() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		Strict:           true,
		CompressionLevel: flate.DefaultCompression,
		ValidatePayloads: true,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	applyEnvironment(config)
	return config
}

// LoadConfigFile overlays a TOML config file onto the defaults, then applies
// environment variables on top: defaults -> file -> environment.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

func applyEnvironment(config *Config) {
	if val := os.Getenv("REDLINE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}
	if parseBool(os.Getenv("REDLINE_DEBUG")) {
		config.LogLevel = "debug"
	}
	if val := os.Getenv("REDLINE_STRICT"); val != "" {
		config.Strict = parseBool(val)
	}
	if val := os.Getenv("REDLINE_COMPRESSION_LEVEL"); val != "" {
		if level, err := strconv.Atoi(val); err == nil {
			config.CompressionLevel = level
		}
	}
	if val := os.Getenv("REDLINE_VALIDATE_PAYLOADS"); val != "" {
		config.ValidatePayloads = parseBool(val)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.CompressionLevel < flate.HuffmanOnly || c.CompressionLevel > flate.BestCompression {
		return fmt.Errorf("compression level %d outside flate range", c.CompressionLevel)
	}

	return nil
}

// GetGlobalConfig returns the global configuration.
func GetGlobalConfig() *Config {
	initGlobalConfig()

	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	// Return a copy to prevent modification
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration.
func SetGlobalConfig(config *Config) {
	initGlobalConfig()

	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
