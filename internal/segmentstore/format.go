// Package segmentstore persists pod startup segments.
//
// The on-disk format is an 8 byte magic header followed by records:
//
//	start  int64  little endian
//	end    int64  little endian
//	name   uint32 length + UTF-8 bytes
//	uid    uint32 length + UTF-8 bytes
package segmentstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/moolen/kubetrace/internal/models"
)

const (
	// FileHeaderMagic identifies a segment file
	FileHeaderMagic = "KTSEGS01"

	// MaxStringLength bounds encoded names and UIDs
	MaxStringLength = models.MaxFieldLength
)

var (
	// ErrClosed is returned when appending to a closed store
	ErrClosed = errors.New("segment store closed")
	// ErrCorrupt is returned for data that is not a segment file
	ErrCorrupt = errors.New("corrupt segment data")
)

// EncodedSize returns the number of bytes Encode writes for seg
func EncodedSize(seg models.PodStartup) int {
	return 8 + 8 + 4 + len(seg.Name()) + 4 + len(seg.UID())
}

// AppendEncoded appends the binary form of seg to buf
func AppendEncoded(buf []byte, seg models.PodStartup) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(seg.Start()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(seg.End()))
	buf = appendString(buf, seg.Name())
	buf = appendString(buf, seg.UID())
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Encode writes the binary form of seg to w
func Encode(w io.Writer, seg models.PodStartup) error {
	_, err := w.Write(AppendEncoded(make([]byte, 0, EncodedSize(seg)), seg))
	return err
}

// Decode reads one segment from r. It returns io.EOF when r is exhausted
// before the first byte and io.ErrUnexpectedEOF for a partial record.
func Decode(r io.Reader) (models.PodStartup, error) {
	var fixed [16]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return models.PodStartup{}, err
	}
	start := int64(binary.LittleEndian.Uint64(fixed[0:8]))
	end := int64(binary.LittleEndian.Uint64(fixed[8:16]))

	name, err := readString(r)
	if err != nil {
		return models.PodStartup{}, err
	}
	uid, err := readString(r)
	if err != nil {
		return models.PodStartup{}, err
	}
	seg := models.RestorePodStartup(start, end, name, uid)
	if err := seg.Validate(); err != nil {
		return models.PodStartup{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return seg, nil
}

func readString(r io.Reader) (string, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return "", noEOF(err)
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n > MaxStringLength {
		return "", fmt.Errorf("%w: string of %d bytes", ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", noEOF(err)
	}
	return string(buf), nil
}

// noEOF turns a clean EOF inside a record into io.ErrUnexpectedEOF
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
