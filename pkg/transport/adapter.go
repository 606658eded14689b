package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
)

// Adapter exposes a RecordLayer as a Datagram and makes every failure
// terminal: the record layer is failed first, then the error propagates.
//
// Error classification:
//   - *alert.FatalError: Fail with its description, returned unchanged
//   - I/O errors (net.Error, io errors, ErrClosed): Fail with internal_error,
//     returned unchanged
//   - anything else, including panics: Fail with internal_error, returned as
//     *alert.FatalError{InternalError} wrapping the cause
//
// ErrTimeout is returned as is and does not fail the record layer.
type Adapter struct {
	rl RecordLayer
}

// NewAdapter wraps a record layer.
func NewAdapter(rl RecordLayer) *Adapter {
	return &Adapter{rl: rl}
}

// ReceiveLimit returns the record layer's plaintext receive limit.
func (a *Adapter) ReceiveLimit() int {
	return a.rl.ReceiveLimit()
}

// SendLimit returns the record layer's plaintext send limit.
func (a *Adapter) SendLimit() int {
	return a.rl.SendLimit()
}

// Receive reads one plaintext record.
func (a *Adapter) Receive(buf []byte, timeout time.Duration) (n int, err error) {
	defer a.recoverFault("receive", &err)

	n, err = a.rl.Receive(buf, timeout)
	if err != nil {
		return 0, a.fail(err)
	}
	return n, nil
}

// Send writes one plaintext record.
func (a *Adapter) Send(buf []byte) (err error) {
	defer a.recoverFault("send", &err)

	if err := a.rl.Send(buf); err != nil {
		return a.fail(err)
	}
	return nil
}

// Close closes the record layer.
func (a *Adapter) Close() error {
	return a.rl.Close()
}

func (a *Adapter) fail(err error) error {
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if fe, ok := alert.AsFatal(err); ok {
		a.rl.Fail(fe.Description)
		return err
	}
	a.rl.Fail(alert.InternalError)
	if isIOError(err) {
		return err
	}
	return alert.NewFatal(alert.InternalError, err)
}

// recoverFault turns a panic in the record layer into a fatal error.
func (a *Adapter) recoverFault(op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	a.rl.Fail(alert.InternalError)
	*err = alert.NewFatal(alert.InternalError, fmt.Errorf("record layer %s: %v", op, r))
}

func isIOError(err error) bool {
	if errors.Is(err, ErrClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var se *os.SyscallError
	return errors.As(err, &se)
}
