package replay

import (
	"errors"
	"fmt"
)

// Window constants.
const (
	// WindowSize is the number of sequence numbers tracked below the anchor.
	WindowSize = 64

	// MaxSequenceNumber is the largest value of the 48-bit sequence field.
	MaxSequenceNumber uint64 = 1<<48 - 1
)

// ErrInvalidSequence indicates a sequence number that does not fit 48 bits.
var ErrInvalidSequence = errors.New("invalid sequence number")

// Window is a sliding anti-replay window.
//
// The zero value is not ready for use; call NewWindow. A Window is not safe
// for concurrent use.
type Window struct {
	latest int64
	bitmap uint64
}

// NewWindow creates a window with no authenticated records.
func NewWindow() *Window {
	return &Window{latest: -1}
}

// ShouldDiscard reports whether a record with the given sequence number must
// be dropped without further processing. It has no side effects.
func (w *Window) ShouldDiscard(seq uint64) bool {
	if seq > MaxSequenceNumber {
		return true
	}

	s := int64(seq)
	if s <= w.latest {
		diff := uint64(w.latest - s)
		if diff >= WindowSize {
			return true
		}
		if w.bitmap&(uint64(1)<<diff) != 0 {
			return true
		}
	}

	return false
}

// ReportAuthenticated records that the record with the given sequence number
// passed authentication.
func (w *Window) ReportAuthenticated(seq uint64) error {
	if seq > MaxSequenceNumber {
		return fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}

	s := int64(seq)
	if s <= w.latest {
		diff := uint64(w.latest - s)
		if diff < WindowSize {
			w.bitmap |= uint64(1) << diff
		}
		return nil
	}

	diff := uint64(s - w.latest)
	if diff >= WindowSize {
		w.bitmap = 1
	} else {
		w.bitmap <<= diff
		w.bitmap |= 1
	}
	w.latest = s

	return nil
}

// Reset forgets all authenticated sequence numbers.
// Used when sequence numbering restarts.
func (w *Window) Reset() {
	w.latest = -1
	w.bitmap = 0
}

// Latest returns the highest authenticated sequence number, or -1 if none.
func (w *Window) Latest() int64 {
	return w.latest
}
