package transport

import (
	"bytes"
	"fmt"
	"sync"
	"time"
)

// DefaultPipeQueue is the number of datagrams a pipe endpoint buffers before
// dropping, like a full socket buffer would.
const DefaultPipeQueue = 64

// PacketFilter rewrites an outbound datagram into zero or more datagrams.
// Returning nil drops it; returning it twice duplicates it.
type PacketFilter func(packet []byte) [][]byte

// PipeTransport is an in-memory Datagram. Endpoints are created in pairs by
// NewPipe; what one sends the other receives.
type PipeTransport struct {
	peer         *PipeTransport
	inbox        chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	receiveLimit int
	sendLimit    int

	mu     sync.Mutex
	filter PacketFilter
}

// NewPipe creates two connected endpoints with limits derived from mtu.
func NewPipe(mtu int) (*PipeTransport, *PipeTransport, error) {
	if mtu < MinMTU {
		return nil, nil, fmt.Errorf("%w: %d < %d", ErrInvalidMTU, mtu, MinMTU)
	}
	receiveLimit, sendLimit := Limits(mtu)

	a := &PipeTransport{
		inbox:        make(chan []byte, DefaultPipeQueue),
		done:         make(chan struct{}),
		receiveLimit: receiveLimit,
		sendLimit:    sendLimit,
	}
	b := &PipeTransport{
		inbox:        make(chan []byte, DefaultPipeQueue),
		done:         make(chan struct{}),
		receiveLimit: receiveLimit,
		sendLimit:    sendLimit,
	}
	a.peer, b.peer = b, a
	return a, b, nil
}

// SetFilter installs a filter applied to every datagram this endpoint sends.
// Pass nil to remove it.
func (p *PipeTransport) SetFilter(f PacketFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = f
}

// ReceiveLimit returns the receive limit.
func (p *PipeTransport) ReceiveLimit() int {
	return p.receiveLimit
}

// SendLimit returns the send limit.
func (p *PipeTransport) SendLimit() int {
	return p.sendLimit
}

// Receive waits for the next datagram from the peer.
func (p *PipeTransport) Receive(buf []byte, timeout time.Duration) (int, error) {
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case pkt := <-p.inbox:
		return copy(buf, pkt), nil
	case <-p.done:
		return 0, ErrClosed
	case <-timeoutCh:
		return 0, ErrTimeout
	}
}

// Send delivers buf to the peer. Datagrams are dropped silently when the
// peer is closed or its queue is full.
func (p *PipeTransport) Send(buf []byte) error {
	if len(buf) > p.sendLimit {
		return fmt.Errorf("%w: %d > %d", ErrDatagramTooLarge, len(buf), p.sendLimit)
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	p.mu.Lock()
	filter := p.filter
	p.mu.Unlock()

	packets := [][]byte{bytes.Clone(buf)}
	if filter != nil {
		packets = filter(packets[0])
	}

	for _, pkt := range packets {
		select {
		case p.peer.inbox <- pkt:
		default:
		}
	}
	return nil
}

// Close closes this endpoint. The peer keeps running but its sends are lost.
func (p *PipeTransport) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}
