package epoch

import (
	"errors"
	"fmt"

	"github.com/mash-protocol/mash-dtls/pkg/replay"
)

// MaxNumber is the largest epoch number the 16-bit wire field can carry.
const MaxNumber = 0xFFFF

// Epoch errors.
var (
	// ErrInvalidArgument indicates a bad epoch number or a missing cipher.
	ErrInvalidArgument = errors.New("invalid epoch argument")

	// ErrSequenceExhausted indicates all 2^48 sequence numbers were used.
	ErrSequenceExhausted = errors.New("sequence numbers exhausted")
)

// Epoch is one cipher-state generation.
// An Epoch is not safe for concurrent use.
type Epoch struct {
	number   uint16
	cipher   Cipher
	sequence uint64
	window   *replay.Window
}

// New creates an epoch with the given number and cipher state.
func New(number int, cipher Cipher) (*Epoch, error) {
	if number < 0 || number > MaxNumber {
		return nil, fmt.Errorf("%w: epoch number %d", ErrInvalidArgument, number)
	}
	if cipher == nil {
		return nil, fmt.Errorf("%w: nil cipher", ErrInvalidArgument)
	}

	return &Epoch{
		number: uint16(number),
		cipher: cipher,
		window: replay.NewWindow(),
	}, nil
}

// Number returns the epoch number.
func (e *Epoch) Number() uint16 {
	return e.number
}

// Cipher returns the cipher state bound to this epoch.
func (e *Epoch) Cipher() Cipher {
	return e.cipher
}

// ReplayWindow returns the epoch's anti-replay window.
func (e *Epoch) ReplayWindow() *replay.Window {
	return e.window
}

// AllocateSequenceNumber returns the next outbound sequence number.
func (e *Epoch) AllocateSequenceNumber() (uint64, error) {
	if e.sequence > replay.MaxSequenceNumber {
		return 0, fmt.Errorf("%w: epoch %d", ErrSequenceExhausted, e.number)
	}
	seq := e.sequence
	e.sequence++
	return seq, nil
}

// RecordNumber combines the epoch and a sequence number into the 64-bit
// value used for nonces and additional data.
func (e *Epoch) RecordNumber(seq uint64) uint64 {
	return uint64(e.number)<<48 | (seq & replay.MaxSequenceNumber)
}
