package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func captured(t *testing.T, name string) (*Logger, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("LOG_TIMESTAMP", "2024-01-01T00:00:00Z")
	var out, errOut bytes.Buffer
	return GetLogger(name).WithOutput(&out, &errOut), &out, &errOut
}

func resetLevels(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		require.NoError(t, Initialize("info", map[string]string{}))
	})
}

func TestLevelFiltering(t *testing.T) {
	resetLevels(t)
	require.NoError(t, Initialize("warn"))
	logger, out, errOut := captured(t, "stateprovider")

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("careful %d", 1)
	logger.Error("broken")

	assert.Equal(t, "[2024-01-01T00:00:00Z] [WARN] stateprovider: careful 1\n", out.String())
	assert.Equal(t, "[2024-01-01T00:00:00Z] [ERROR] stateprovider: broken\n", errOut.String())
}

func TestFieldsAreSortedAndMerged(t *testing.T) {
	resetLevels(t)
	require.NoError(t, Initialize("debug"))
	logger, out, _ := captured(t, "latency")

	child := logger.WithField("run", "r1").WithFields(Field("b", 2))
	child.InfoWithFields("done", Field("a", 1), Field("b", 3))

	assert.Equal(t, "[2024-01-01T00:00:00Z] [INFO] latency: done | a=1 b=3 run=r1\n", out.String())

	out.Reset()
	logger.Info("parent untouched")
	assert.NotContains(t, out.String(), "run=")
}

func TestErrorWithErr(t *testing.T) {
	resetLevels(t)
	logger, _, errOut := captured(t, "cgroups")
	logger.ErrorWithErr("pass %s failed", assert.AnError, "kernel-0")
	assert.Contains(t, errOut.String(), "pass kernel-0 failed - "+assert.AnError.Error())
}

func TestFatalCallsExit(t *testing.T) {
	resetLevels(t)
	code := 0
	old := exitFunc
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = old })

	logger, _, errOut := captured(t, "main")
	logger.Fatal("boom")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "[FATAL] main: boom")
}

func TestContextAddsSpanIDs(t *testing.T) {
	resetLevels(t)
	logger, out, _ := captured(t, "api")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	logger.WithContext(ctx).Info("request")

	assert.Contains(t, out.String(), "trace_id="+sc.TraceID().String())
	assert.Contains(t, out.String(), "span_id="+sc.SpanID().String())

	out.Reset()
	logger.WithContext(context.Background()).Info("plain")
	assert.NotContains(t, out.String(), "|")
}

func TestPackageLevels(t *testing.T) {
	resetLevels(t)
	require.NoError(t, Initialize("info", map[string]string{
		"cgroups":         "debug",
		"stateprovider.*": "error",
		"stateprovider.x": "warn",
	}))

	assert.Equal(t, DEBUG, GetPackageLogLevel("cgroups"))
	assert.Equal(t, ERROR, GetPackageLogLevel("stateprovider.edges"))
	assert.Equal(t, WARN, GetPackageLogLevel("stateprovider.x"))
	assert.Equal(t, LogLevel(-1), GetPackageLogLevel("stateprovider"))

	assert.True(t, GetLogger("cgroups").Enabled(DEBUG))
	assert.False(t, GetLogger("stateprovider.edges").Enabled(WARN))
	assert.True(t, GetLogger("latency").Enabled(INFO))
	assert.False(t, GetLogger("latency").Enabled(DEBUG))
}

func TestSetPackageLogLevelsRejectsUnknownLevel(t *testing.T) {
	resetLevels(t)
	err := SetPackageLogLevels(map[string]string{"api": "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		err  bool
	}{
		{"debug", DEBUG, false},
		{" INFO ", INFO, false},
		{"warning", WARN, false},
		{"Error", ERROR, false},
		{"fatal", FATAL, false},
		{"verbose", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
