package segmentstore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moolen/kubetrace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seg := models.NewPodStartup(models.InitialInfo{StartTime: 100, Name: "pod-a", UID: "abc"}, 250)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, seg))
	assert.Equal(t, EncodedSize(seg), buf.Len())

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, seg, got)

	_, err = Decode(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeTruncated(t *testing.T) {
	seg := models.RestorePodStartup(1, 2, "name", "uid")
	encoded := AppendEncoded(nil, seg)

	for _, n := range []int{4, 16, 20, len(encoded) - 1} {
		_, err := Decode(bytes.NewReader(encoded[:n]))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut at %d", n)
	}
}

func TestInvalidSegmentsAreRejected(t *testing.T) {
	inverted := models.RestorePodStartup(10, 5, "pod-a", "abc")

	_, err := Decode(bytes.NewReader(AppendEncoded(nil, inverted)))
	assert.ErrorIs(t, err, ErrCorrupt)

	err = NewMemoryStore().Append(inverted)
	assert.True(t, models.IsValidationError(err))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Append(models.RestorePodStartup(1, 2, "a", "1")))
	require.NoError(t, s.Append(models.RestorePodStartup(3, 4, "b", "2")))
	assert.Equal(t, 2, s.Len())

	segs, err := s.Segments()
	require.NoError(t, err)
	assert.Equal(t, "a", segs[0].Name())
	assert.Equal(t, "b", segs[1].Name())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(models.RestorePodStartup(5, 6, "c", "3")), ErrClosed)
	_, err = s.Segments()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startups.seg")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	want := []models.PodStartup{
		models.RestorePodStartup(100, 250, "pod-a", "abc"),
		models.RestorePodStartup(300, 900, "pod-b", "def"),
	}
	for _, seg := range want {
		require.NoError(t, s.Append(seg))
	}
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(want[0]), ErrClosed)

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Segments()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, reopened.Append(models.RestorePodStartup(1000, 1100, "pod-c", "ghi")))
	require.NoError(t, reopened.Close())

	all, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileStoreDropsPartialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startups.seg")
	good := models.RestorePodStartup(100, 250, "pod-a", "abc")

	data := []byte(FileHeaderMagic)
	data = AppendEncoded(data, good)
	partial := AppendEncoded(nil, models.RestorePodStartup(300, 400, "pod-b", "def"))
	data = append(data, partial[:len(partial)-2]...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	segs, err := s.Segments()
	require.NoError(t, err)
	assert.Equal(t, []models.PodStartup{good}, segs)

	next := models.RestorePodStartup(500, 600, "pod-c", "ghi")
	require.NoError(t, s.Append(next))
	require.NoError(t, s.Close())

	all, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.PodStartup{good, next}, all)
}

func TestFileStoreRejectsOversizedNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startups.seg")
	s, err := OpenFileStore(path)
	require.NoError(t, err)

	good := models.RestorePodStartup(100, 250, "pod-a", "abc")
	require.NoError(t, s.Append(good))
	long := strings.Repeat("x", MaxStringLength+1)
	err = s.Append(models.RestorePodStartup(300, 400, long, "def"))
	assert.True(t, models.IsValidationError(err))
	err = s.Append(models.RestorePodStartup(300, 400, "pod-b", long))
	assert.True(t, models.IsValidationError(err))
	require.NoError(t, s.Append(models.RestorePodStartup(500, 600, strings.Repeat("y", MaxStringLength), "ghi")))
	require.NoError(t, s.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	require.NoError(t, reopened.Close())

	assert.True(t, models.IsValidationError(NewMemoryStore().Append(models.RestorePodStartup(1, 2, long, "x"))))
}

func TestFileStoreRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other")
	require.NoError(t, os.WriteFile(path, []byte("NOTASEGMENTFILE"), 0o644))

	_, err := OpenFileStore(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}
