package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// StdinPath names standard input in NewFilteredReader.
const StdinPath = "-"

// Filter selects events. Zero-valued fields match everything.
type Filter struct {
	ConnectionID string
	RemoteAddr   string
	Direction    *Direction
	Layer        *Layer
	Category     *Category
	Role         *Role

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

func (f *Filter) matches(e Event) bool {
	switch {
	case f.ConnectionID != "" && e.ConnectionID != f.ConnectionID,
		f.RemoteAddr != "" && e.RemoteAddr != f.RemoteAddr,
		f.Direction != nil && e.Direction != *f.Direction,
		f.Layer != nil && e.Layer != *f.Layer,
		f.Category != nil && e.Category != *f.Category,
		f.Role != nil && e.LocalRole != *f.Role,
		f.TimeStart != nil && e.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !e.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams events out of a capture.
type Reader struct {
	src     io.Closer
	dec     *cbor.Decoder
	filter  Filter
	decoded int
}

// NewReader opens a capture file and yields every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file and yields the events filter
// matches. StdinPath reads standard input.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	if path == StdinPath {
		return NewStreamReader(io.NopCloser(os.Stdin), filter), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open protocol log: %w", err)
	}
	return NewStreamReader(f, filter), nil
}

// NewStreamReader reads a capture from rc. Close closes rc.
func NewStreamReader(rc io.ReadCloser, filter Filter) *Reader {
	return &Reader{src: rc, dec: NewDecoder(rc), filter: filter}
}

// Next returns the next matching event, or io.EOF at the end of the capture.
// A capture cut off mid-event, as left by a crashed writer, is reported as
// an error wrapping io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		if err := r.dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return Event{}, fmt.Errorf("event %d truncated: %w", r.decoded+1, err)
			}
			return Event{}, fmt.Errorf("decode event %d: %w", r.decoded+1, err)
		}
		r.decoded++
		if r.filter.matches(e) {
			return e, nil
		}
	}
}

// Decoded returns how many events have been read, matching or not.
func (r *Reader) Decoded() int {
	return r.decoded
}

// Close releases the underlying source.
func (r *Reader) Close() error {
	return r.src.Close()
}
