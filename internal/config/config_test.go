package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubetrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `log_level: debug
package_log_levels:
  cgroups: warn
data_dir: /var/lib/kubetrace
traces:
  kubernetes: k8s.jsonl
  kernel:
    - kernel-0.jsonl.gz
    - kernel-1.jsonl.gz
analysis:
  cancel_check_interval: 64
api:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, map[string]string{"cgroups": "warn"}, cfg.PackageLogLevels)
	assert.Equal(t, "/var/lib/kubetrace", cfg.DataDir)
	assert.Equal(t, "k8s.jsonl", cfg.Traces.Kubernetes)
	assert.Equal(t, []string{"kernel-0.jsonl.gz", "kernel-1.jsonl.gz"}, cfg.Traces.Kernel)
	assert.Equal(t, 64, cfg.Analysis.CancelCheckInterval)
	assert.Equal(t, 9090, cfg.API.Port)

	// Unset keys keep their defaults.
	assert.Equal(t, 10000, cfg.Analysis.ProgressSampling)
	assert.Equal(t, 4096, cfg.Analysis.AttributeCacheSize)
	assert.True(t, cfg.API.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "log_level: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "tracing:\n  enabled: true\n"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero sampling", func(c *Config) { c.Analysis.ProgressSampling = 0 }, "analysis.progress_sampling must be at least 1"},
		{"zero cancel interval", func(c *Config) { c.Analysis.CancelCheckInterval = 0 }, "analysis.cancel_check_interval must be at least 1"},
		{"zero cache", func(c *Config) { c.Analysis.AttributeCacheSize = 0 }, "analysis.attribute_cache_size must be at least 1"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "api.port must be between 1 and 65535"},
		{"port ignored when disabled", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, ""},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }, "tracing.endpoint must be set when tracing is enabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.True(t, IsConfigError(err))
		})
	}
}
