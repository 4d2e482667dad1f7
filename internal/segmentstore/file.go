package segmentstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/models"
)

// FileStore appends segments to a file and keeps them in memory for reads
type FileStore struct {
	mu       sync.RWMutex
	path     string
	file     *os.File
	segments []models.PodStartup
	buf      []byte
	closed   bool
	logger   *logging.Logger
}

// OpenFileStore opens or creates the segment file at path. Existing records
// are loaded; a truncated trailing record left by an interrupted write is
// dropped.
func OpenFileStore(path string) (*FileStore, error) {
	logger := logging.GetLogger("segmentstore")

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat segment file: %w", err)
	}

	fs := &FileStore{path: path, file: file, logger: logger}
	if info.Size() == 0 {
		if _, err := file.Write([]byte(FileHeaderMagic)); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to write segment header: %w", err)
		}
		return fs, nil
	}

	segments, valid, err := readAll(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if valid < info.Size() {
		logger.Warn("dropping %d bytes of partial record at the end of %s", info.Size()-valid, path)
		if err := file.Truncate(valid); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to truncate segment file: %w", err)
		}
	}
	if _, err := file.Seek(valid, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to seek segment file: %w", err)
	}
	fs.segments = segments
	logger.Debug("loaded %d segments from %s", len(segments), path)
	return fs, nil
}

// ReadFile decodes every complete record of the segment file at path
func ReadFile(path string) ([]models.PodStartup, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	segments, _, err := readAll(file)
	return segments, err
}

// readAll checks the header and decodes records from the start of r. It
// returns the decoded segments and the byte offset just past the last complete
// record.
func readAll(r io.ReadSeeker) ([]models.PodStartup, int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	br := bufio.NewReader(r)
	header := make([]byte, len(FileHeaderMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, 0, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if !bytes.Equal(header, []byte(FileHeaderMagic)) {
		return nil, 0, fmt.Errorf("%w: invalid header %q", ErrCorrupt, header)
	}

	valid := int64(len(FileHeaderMagic))
	var segments []models.PodStartup
	for {
		seg, err := Decode(br)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return segments, valid, nil
		}
		if err != nil {
			return nil, 0, err
		}
		segments = append(segments, seg)
		valid += int64(EncodedSize(seg))
	}
}

// Path returns the file path of the store
func (f *FileStore) Path() string {
	return f.path
}

// Append implements Store
func (f *FileStore) Append(seg models.PodStartup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := seg.Validate(); err != nil {
		return err
	}
	f.buf = AppendEncoded(f.buf[:0], seg)
	if _, err := f.file.Write(f.buf); err != nil {
		return fmt.Errorf("failed to append segment: %w", err)
	}
	f.segments = append(f.segments, seg)
	return nil
}

// Segments implements Store
func (f *FileStore) Segments() ([]models.PodStartup, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	return append([]models.PodStartup(nil), f.segments...), nil
}

// Len implements Store
func (f *FileStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.segments)
}

// Close flushes the file to disk and closes it
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return errors.Join(f.file.Sync(), f.file.Close())
}
