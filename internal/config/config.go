package config

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	// LogLevel is the default logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// PackageLogLevels overrides the level of single packages; keys may end in ".*"
	PackageLogLevels map[string]string `yaml:"package_log_levels"`

	// DataDir is the directory holding the segment store
	DataDir string `yaml:"data_dir"`

	Traces   TracesConfig   `yaml:"traces"`
	Analysis AnalysisConfig `yaml:"analysis"`
	API      APIConfig      `yaml:"api"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// TracesConfig names the trace files of an experiment
type TracesConfig struct {
	// Kubernetes is the user-space trace with the Kubernetes object events
	Kubernetes string `yaml:"kubernetes"`

	// Kernel lists the kernel sub-traces, one per node
	Kernel []string `yaml:"kernel"`
}

// AnalysisConfig tunes the analysis runners
type AnalysisConfig struct {
	// ProgressSampling is the number of events between two ETA estimates
	ProgressSampling int `yaml:"progress_sampling"`

	// CancelCheckInterval is the number of events between two cancellation checks
	CancelCheckInterval int `yaml:"cancel_check_interval"`

	// AttributeCacheSize is the number of LRU entries of the attribute allocator
	AttributeCacheSize int `yaml:"attribute_cache_size"`
}

// APIConfig configures the HTTP API of the serve command
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig configures OpenTelemetry trace export
type TracingConfig struct {
	// Enabled indicates whether OpenTelemetry tracing is enabled
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC endpoint for trace export
	Endpoint string `yaml:"endpoint"`

	// TLSCAPath is the path to the CA certificate for TLS verification
	TLSCAPath string `yaml:"tls_ca_path"`

	// TLSInsecure skips TLS certificate verification
	TLSInsecure bool `yaml:"tls_insecure"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		PackageLogLevels: map[string]string{},
		DataDir:          "./data",
		Analysis: AnalysisConfig{
			ProgressSampling:    10000,
			CancelCheckInterval: 1024,
			AttributeCacheSize:  4096,
		},
		API: APIConfig{Enabled: true, Port: 8080},
	}
}

// Load reads a YAML configuration file over the defaults and validates it
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	// Keys missing from the file keep their default value
	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Analysis.ProgressSampling < 1 {
		return NewConfigError("analysis.progress_sampling must be at least 1")
	}

	if c.Analysis.CancelCheckInterval < 1 {
		return NewConfigError("analysis.cancel_check_interval must be at least 1")
	}

	if c.Analysis.AttributeCacheSize < 1 {
		return NewConfigError("analysis.attribute_cache_size must be at least 1")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return NewConfigError("api.port must be between 1 and 65535")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}

// IsConfigError reports whether err is a configuration error
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
