package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPodStartup(t *testing.T) {
	p := NewPodStartup(InitialInfo{StartTime: 100, Name: "pod-a", UID: "uid-a"}, 1_000_100)
	assert.Equal(t, int64(100), p.Start())
	assert.Equal(t, int64(1_000_100), p.End())
	assert.Equal(t, int64(1_000_000), p.Length())
	assert.Equal(t, time.Millisecond, p.Latency())
	assert.Equal(t, PodStartupView{Start: 100, End: 1_000_100, Duration: 1_000_000, Name: "pod-a", UID: "uid-a"}, p.View())
	assert.NoError(t, p.Validate())
}

func TestPodStartupValidate(t *testing.T) {
	assert.NoError(t, RestorePodStartup(5, 5, "pod-a", "uid").Validate())

	err := RestorePodStartup(10, 5, "pod-a", "uid").Validate()
	assert.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.EqualError(t, err, `invalid pod startup: "pod-a" ends at 5 before its start 10`)

	long := strings.Repeat("a", MaxFieldLength+1)
	assert.True(t, IsValidationError(RestorePodStartup(1, 2, long, "uid").Validate()))
	assert.True(t, IsValidationError(RestorePodStartup(1, 2, "pod-a", long).Validate()))
	assert.NoError(t, RestorePodStartup(1, 2, long[1:], "uid").Validate())
}
