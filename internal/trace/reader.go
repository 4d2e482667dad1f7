package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Reader decodes a JSON-lines trace
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader returns a Reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event. Blank lines are skipped. A line that cannot be
// decoded yields an error wrapping ErrMalformedEvent and the reader moves on.
func (r *Reader) Next() (Event, error) {
	for {
		raw, err := r.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read trace: %w", err)
		}
		r.line++
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}
		var rec Record
		if decodeErr := json.Unmarshal(raw, &rec); decodeErr != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedEvent, r.line, decodeErr)
		}
		return &rec, nil
	}
}

// File is an open trace file
type File struct {
	*Reader
	path    string
	closers []io.Closer
}

// Open opens a trace file for reading. Files ending in ".gz" are decompressed.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("trace path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("trace does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to stat trace %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("trace path is a directory, not a file: %s", path)
	}

	// #nosec G304 -- trace paths come from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", path, err)
	}
	tf := &File{path: path, closers: []io.Closer{f}}

	var src io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open gzip trace %s: %w", path, err)
		}
		tf.closers = append([]io.Closer{gz}, tf.closers...)
		src = gz
	}
	tf.Reader = NewReader(src)
	return tf, nil
}

// Path returns the path the file was opened from
func (f *File) Path() string { return f.path }

// Close releases the file
func (f *File) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CountEvents returns the number of non-blank lines of a trace file. It is
// used as the total for progress estimation.
func CountEvents(path string) (int64, error) {
	f, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var n int64
	content := false
	for {
		chunk, err := f.r.ReadSlice('\n')
		if len(bytes.TrimSpace(chunk)) > 0 {
			content = true
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if content {
			n++
		}
		content = false
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("failed to count events in %s: %w", path, err)
		}
	}
}

// SliceSource replays events from memory
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource returns a Source over events
func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements Source
func (s *SliceSource) Next() (Event, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}
