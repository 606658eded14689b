package transport

import (
	"errors"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
)

// Header overheads used to derive size limits from the MTU.
const (
	// MinIPOverhead is the minimum IPv4 header plus the UDP header.
	MinIPOverhead = 20 + 8

	// MaxIPOverhead adds room for IP options or extension headers.
	MaxIPOverhead = 84

	// DefaultMTU is the MTU used when none is configured.
	DefaultMTU = 1500

	// MinMTU is the smallest MTU that leaves any room to send.
	MinMTU = MaxIPOverhead + 1
)

// Transport errors.
var (
	// ErrTimeout indicates no datagram arrived within the timeout.
	// It is a control-flow signal, not a failure.
	ErrTimeout = errors.New("receive timeout")

	// ErrClosed indicates the transport was closed.
	ErrClosed = errors.New("transport closed")

	// ErrDatagramTooLarge indicates a send over the send limit.
	ErrDatagramTooLarge = errors.New("datagram exceeds send limit")

	// ErrInvalidMTU indicates an MTU too small to carry anything.
	ErrInvalidMTU = errors.New("invalid MTU")
)

// Datagram is an unreliable, size-bounded, packet-oriented channel.
// Implemented by UDPTransport, PipeTransport and Adapter.
type Datagram interface {
	// ReceiveLimit returns the largest datagram Receive can deliver.
	ReceiveLimit() int

	// SendLimit returns the largest datagram Send accepts.
	SendLimit() int

	// Receive waits up to timeout for one datagram and copies it into buf.
	// A timeout of zero or less waits indefinitely. Returns ErrTimeout when
	// nothing arrived in time and ErrClosed once the transport is closed.
	Receive(buf []byte, timeout time.Duration) (int, error)

	// Send transmits buf as a single datagram.
	Send(buf []byte) error

	// Close releases the channel. Safe to call more than once.
	Close() error
}

// RecordLayer is a Datagram that protects its payloads, plus the ability to
// fail the connection with an alert.
// Implemented by record.Layer.
type RecordLayer interface {
	Datagram

	// Fail tears the connection down, notifying the peer with the given
	// alert description if possible. Safe to call more than once.
	Fail(desc alert.Description)
}

// RetransmitHook observes handshake records of a superseded epoch so the last
// outbound flight can be resent when the peer evidently did not receive it.
// Implemented by flight.Manager.
type RetransmitHook interface {
	// ReceivedHandshakeRecord is called with the plaintext of a handshake
	// record received under the given (non-current) epoch.
	ReceivedHandshakeRecord(epoch uint16, record []byte)
}

// Limits returns the receive and send limits for an MTU.
func Limits(mtu int) (receiveLimit, sendLimit int) {
	return mtu - MinIPOverhead, mtu - MaxIPOverhead
}

// Compile-time interface satisfaction checks.
var (
	_ Datagram = (*UDPTransport)(nil)
	_ Datagram = (*PipeTransport)(nil)
	_ Datagram = (*Adapter)(nil)
)
