package commands

import (
	"testing"

	"github.com/moolen/kubetrace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevelFlags(t *testing.T) {
	tests := []struct {
		name         string
		cfg          *config.Config
		env          map[string]string
		flags        []string
		wantDefault  string
		wantPackages map[string]string
		wantErr      bool
	}{
		{
			name:         "no input",
			wantDefault:  "info",
			wantPackages: map[string]string{},
		},
		{
			name:         "simple default",
			flags:        []string{"debug"},
			wantDefault:  "debug",
			wantPackages: map[string]string{},
		},
		{
			name:         "package levels",
			flags:        []string{"default=warn", "cgroups=debug", "stateprovider.*=error"},
			wantDefault:  "warn",
			wantPackages: map[string]string{"cgroups": "debug", "stateprovider.*": "error"},
		},
		{
			name:         "config file is the lowest priority",
			cfg:          &config.Config{LogLevel: "error", PackageLogLevels: map[string]string{"api": "debug", "latency": "warn"}},
			env:          map[string]string{"LOG_LEVEL_API": "info"},
			flags:        []string{"latency=debug"},
			wantDefault:  "error",
			wantPackages: map[string]string{"api": "info", "latency": "debug"},
		},
		{
			name:         "env converts package names",
			env:          map[string]string{"LOG_LEVEL_CGROUPS_BUILDER": "debug"},
			wantDefault:  "info",
			wantPackages: map[string]string{"cgroups.builder": "debug"},
		},
		{
			name:    "invalid default",
			flags:   []string{"verbose"},
			wantErr: true,
		},
		{
			name:    "invalid package level",
			flags:   []string{"api=loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			def, pkgs, err := parseLogLevelFlags(tt.cfg, tt.flags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDefault, def)
			assert.Equal(t, tt.wantPackages, pkgs)
		})
	}
}

func TestConvertEnvKeyToPackageName(t *testing.T) {
	assert.Equal(t, "cgroups", convertEnvKeyToPackageName("LOG_LEVEL_CGROUPS"))
	assert.Equal(t, "api.parsing", convertEnvKeyToPackageName("LOG_LEVEL_API_PARSING"))
}

func TestValidateLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "error", "fatal"} {
		assert.NoError(t, validateLogLevel(level), level)
	}
	assert.Error(t, validateLogLevel("trace"))
}

func TestTraceFlagsApply(t *testing.T) {
	cfg := config.Default()
	cfg.Traces.Kubernetes = "from-config.jsonl"
	cfg.Traces.Kernel = []string{"kernel-config.jsonl"}

	traceFlags{}.apply(cfg)
	assert.Equal(t, "from-config.jsonl", cfg.Traces.Kubernetes)
	assert.Equal(t, []string{"kernel-config.jsonl"}, cfg.Traces.Kernel)

	traceFlags{kubernetes: "k8s.jsonl", kernel: []string{"a.jsonl", "b.jsonl"}}.apply(cfg)
	assert.Equal(t, "k8s.jsonl", cfg.Traces.Kubernetes)
	assert.Equal(t, []string{"a.jsonl", "b.jsonl"}, cfg.Traces.Kernel)
}
