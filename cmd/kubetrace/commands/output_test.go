package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{FormatTable, FormatJSON, FormatYAML} {
		assert.NoError(t, validateFormat(f))
	}
	assert.Error(t, validateFormat("xml"))
}

func TestWriteStructured(t *testing.T) {
	segs := []models.PodStartup{models.RestorePodStartup(100, 250, "pod-a", "uid-a")}

	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, FormatJSON, segmentViews(segs)))
	var fromJSON []models.PodStartupView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, int64(150), fromJSON[0].Duration)

	buf.Reset()
	require.NoError(t, writeStructured(&buf, FormatYAML, segmentViews(segs)))
	assert.Contains(t, buf.String(), "name: pod-a")
	var fromYAML []models.PodStartupView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, fromJSON, fromYAML)

	assert.Error(t, writeStructured(&buf, FormatTable, segs))
}

func TestWriteObjectTree(t *testing.T) {
	var buf bytes.Buffer
	writeObjectTree(&buf, []dataprovider.Entry{
		{ID: 0, ParentID: -1, Name: "k8s"},
		{ID: 1, ParentID: 0, Name: "rs"},
		{ID: 2, ParentID: 1, Name: "pod-a"},
		{ID: 3, ParentID: 0, Name: "pod-b"},
	})
	assert.Equal(t, "k8s\n  rs\n    pod-a\n  pod-b\n", buf.String())
}

func TestWriteCPUTreeGroupsThreads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCPUTree(&buf, []dataprovider.CPUEntry{
		{ID: 0, ParentID: -1, Labels: []string{"kernel", "total", "50.00 %", "1 s"}, TID: -1},
		{ID: 1, ParentID: 0, Labels: []string{"pod-a", "cgroup", "40.00 %", "800 ms"}, TID: -1},
		{ID: 2, ParentID: 0, Labels: []string{"pod-b", "cgroup", "10.00 %", "200 ms"}, TID: -1},
		{ID: 3, ParentID: 2, Labels: []string{"sh", "7", "10.00 %", "200 ms"}, TID: 7},
		{ID: 4, ParentID: 1, Labels: []string{"nginx", "42", "40.00 %", "800 ms"}, TID: 42},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "kernel"))
	assert.True(t, strings.HasPrefix(lines[2], "  pod-a"))
	assert.True(t, strings.HasPrefix(lines[3], "    nginx"))
	assert.True(t, strings.HasPrefix(lines[4], "  pod-b"))
	assert.True(t, strings.HasPrefix(lines[5], "    sh"))
}

func TestWriteStatistics(t *testing.T) {
	segs := []models.PodStartup{
		models.RestorePodStartup(0, 1_000_000_000, "a", "1"),
		models.RestorePodStartup(0, 3_000_000_000, "b", "2"),
	}
	var buf bytes.Buffer
	require.NoError(t, writeStatistics(&buf, latency.ComputeStatistics(segs), latency.Density(segs, 2)))
	out := buf.String()
	assert.Contains(t, out, "Count    2")
	assert.Contains(t, out, "Mean     2s")
	assert.Contains(t, out, "FROM")

	buf.Reset()
	require.NoError(t, writeStatistics(&buf, latency.ComputeStatistics(nil), nil))
	assert.Equal(t, "Count  0\n", buf.String())
}

func TestOpenSegmentStoreCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := openSegmentStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(models.RestorePodStartup(1, 2, "pod-a", "uid")))
	require.NoError(t, store.Close())
	assert.Equal(t, filepath.Join(dir, SegmentFile), store.Path())
}
