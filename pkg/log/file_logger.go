package log

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileExtension is the conventional suffix of capture files.
const FileExtension = ".dlog"

// fileBufferSize holds roughly a flight's worth of datagram events.
const fileBufferSize = 64 << 10

// FileLogger appends events to a capture file. Writes are buffered; events
// reach the file on Flush or Close. Safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	enc     *cbor.Encoder
	closed  bool
	dropped int
}

// NewFileLogger opens path for appending, creating it with mode 0644 when
// needed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open protocol log: %w", err)
	}
	w := bufio.NewWriterSize(f, fileBufferSize)
	return &FileLogger{file: f, w: w, enc: NewEncoder(w)}, nil
}

// Log appends event. Events that cannot be written are counted, not
// reported, so capture never interferes with the connection.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.enc.Encode(event); err != nil {
		l.dropped++
	}
}

// Dropped returns how many events failed to encode or write.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Flush writes buffered events to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	return l.w.Flush()
}

// Close flushes and closes the file. Later calls to Log are ignored and
// later calls to Close return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.w.Flush(), l.file.Close())
}

var _ Logger = (*FileLogger)(nil)
