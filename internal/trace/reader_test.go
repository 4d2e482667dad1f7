package trace

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `{"name":"k8s_ust:event","ts":100,"fields":{"op_name":"Event","op_ctx":"Name: pod-a, UID: abc, Reason: Pulling"}}

{"name":"sched_switch","ts":200,"fields":{"context._tid":42,"context._procname":"nginx","context._cgroup_ns":7,"flag":true,"missing":null}}
not json
{"ts":300,"fields":{}}
{"name":"k8s_ust:event","ts":400,"fields":{"op_name":"Terminated","op_ctx":"Name: pod-a"}}`

func readAll(t *testing.T, src Source) ([]Event, int) {
	t.Helper()
	var events []Event
	malformed := 0
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return events, malformed
		}
		if errors.Is(err, ErrMalformedEvent) {
			malformed++
			continue
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestReaderDecodesEventsAndSkipsMalformedLines(t *testing.T) {
	events, malformed := readAll(t, NewReader(strings.NewReader(sampleTrace)))

	require.Len(t, events, 3)
	assert.Equal(t, 2, malformed)

	assert.Equal(t, KubernetesEvent, events[0].Name())
	assert.Equal(t, int64(100), events[0].Timestamp())
	ctx, ok := events[0].Field(FieldOperationContext)
	assert.True(t, ok)
	assert.Equal(t, "Name: pod-a, UID: abc, Reason: Pulling", ctx)

	tid, ok := events[1].Field(FieldTID)
	assert.True(t, ok)
	assert.Equal(t, "42", tid)
	flag, _ := events[1].Field("flag")
	assert.Equal(t, "true", flag)
	_, ok = events[1].Field("missing")
	assert.False(t, ok, "null fields are absent")

	assert.Equal(t, int64(400), events[2].Timestamp())
}

func TestReaderNormalizesNumbers(t *testing.T) {
	line := `{"name":"sched_switch","ts":1,"fields":{"exp":1e3,"big":4.0e9,"frac":1.5,"neg":-7,"max":18446744073709551615}}`
	events, malformed := readAll(t, NewReader(strings.NewReader(line)))
	require.Len(t, events, 1)
	assert.Zero(t, malformed)

	for field, want := range map[string]string{
		"exp":  "1000",
		"big":  "4000000000",
		"frac": "1.5",
		"neg":  "-7",
		"max":  "18446744073709551615",
	} {
		got, ok := events[0].Field(field)
		assert.True(t, ok, field)
		assert.Equal(t, want, got, field)
	}
}

func TestMalformedErrorCarriesLineNumber(t *testing.T) {
	r := NewReader(strings.NewReader("{}\n"))
	_, err := r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Contains(t, err.Error(), "line 1")
}

func TestOpenGzipTraceAndCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.jsonl.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleTrace))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	tf, err := Open(path)
	require.NoError(t, err)
	defer tf.Close()
	events, malformed := readAll(t, tf)
	assert.Len(t, events, 3)
	assert.Equal(t, 2, malformed)

	n, err := CountEvents(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n, "blank lines are not counted")
}

func TestOpenRejectsDirectories(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")

	_, err = Open("")
	require.Error(t, err)
}

func TestRecordRoundTripsThroughJSON(t *testing.T) {
	rec := NewRecord(SchedSwitch, 5, map[string]string{FieldTID: "42"})
	data, err := rec.MarshalJSON()
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, rec.Name(), decoded.Name())
	assert.Equal(t, rec.Timestamp(), decoded.Timestamp())
	assert.Equal(t, rec.Fields, decoded.Fields)
}
