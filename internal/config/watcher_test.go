package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, callback ReloadCallback) *Watcher {
	t.Helper()
	w, err := NewWatcher(path, 100*time.Millisecond, callback)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")

	var level atomic.Value
	var calls atomic.Int32
	startWatcher(t, path, func(cfg *Config) error {
		level.Store(cfg.LogLevel)
		calls.Add(1)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0600))
	}

	require.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "debug"
	}, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestWatcherKeepsPreviousConfigOnInvalidReload(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")

	var calls atomic.Int32
	startWatcher(t, path, func(cfg *Config) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  progress_sampling: 0\n"), 0600))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0600))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestNewWatcherValidation(t *testing.T) {
	_, err := NewWatcher("", 0, func(*Config) error { return nil })
	assert.Error(t, err)

	_, err = NewWatcher("x.yaml", 0, nil)
	assert.Error(t, err)

	w, err := NewWatcher("x.yaml", 0, func(*Config) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
}
