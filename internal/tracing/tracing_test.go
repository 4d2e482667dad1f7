package tracing

import (
	"context"
	"testing"

	"github.com/moolen/kubetrace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.TracingConfig
		expectError bool
		enabled     bool
	}{
		{name: "disabled", cfg: config.TracingConfig{}},
		{name: "enabled without endpoint", cfg: config.TracingConfig{Enabled: true}, expectError: true},
		{
			name:    "TLS with insecure skip verify",
			cfg:     config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", TLSInsecure: true},
			enabled: true,
		},
		{
			name:        "TLS with missing CA certificate",
			cfg:         config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/path/to/ca.crt"},
			expectError: true,
		},
		{
			name:    "plaintext",
			cfg:     config.TracingConfig{Enabled: true, Endpoint: "localhost:4317"},
			enabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg, "test")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, p.Enabled())
			assert.Equal(t, "tracing", p.Name())
			assert.NoError(t, p.Start(context.Background()))
			assert.NoError(t, p.Stop(context.Background()))
		})
	}
}
