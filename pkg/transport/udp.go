package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// UDPTransport is a Datagram backed by a connected UDP socket.
type UDPTransport struct {
	conn         net.Conn
	receiveLimit int
	sendLimit    int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewUDPTransport wraps a connected packet socket.
func NewUDPTransport(conn net.Conn, mtu int) (*UDPTransport, error) {
	if mtu < MinMTU {
		return nil, fmt.Errorf("%w: %d < %d", ErrInvalidMTU, mtu, MinMTU)
	}
	receiveLimit, sendLimit := Limits(mtu)
	return &UDPTransport{
		conn:         conn,
		receiveLimit: receiveLimit,
		sendLimit:    sendLimit,
	}, nil
}

// DialUDP connects a UDP socket to address.
func DialUDP(ctx context.Context, address string, mtu int) (*UDPTransport, error) {
	if mtu < MinMTU {
		return nil, fmt.Errorf("%w: %d < %d", ErrInvalidMTU, mtu, MinMTU)
	}
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return NewUDPTransport(conn, mtu)
}

// NewLoopbackPair returns two UDP transports on 127.0.0.1 connected to each
// other.
func NewLoopbackPair(mtu int) (*UDPTransport, *UDPTransport, error) {
	if mtu < MinMTU {
		return nil, nil, fmt.Errorf("%w: %d < %d", ErrInvalidMTU, mtu, MinMTU)
	}

	// Both sockets stay bound from here on, so neither port can be taken
	// by another process before the pair is wired up.
	socks := make([]*net.UDPConn, 2)
	for i := range socks {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			for _, c := range socks[:i] {
				_ = c.Close()
			}
			return nil, nil, fmt.Errorf("listen on loopback: %w", err)
		}
		socks[i] = conn
	}

	a, _ := NewUDPTransport(newPeerConn(socks[0], socks[1]), mtu)
	b, _ := NewUDPTransport(newPeerConn(socks[1], socks[0]), mtu)
	return a, b, nil
}

// peerConn pins an unconnected UDP socket to one peer. Datagrams from any
// other source are dropped.
type peerConn struct {
	*net.UDPConn
	peer netip.AddrPort
}

func newPeerConn(conn, peer *net.UDPConn) *peerConn {
	return &peerConn{
		UDPConn: conn,
		peer:    peer.LocalAddr().(*net.UDPAddr).AddrPort(),
	}
}

func (c *peerConn) Read(b []byte) (int, error) {
	for {
		n, from, err := c.ReadFromUDPAddrPort(b)
		if err != nil {
			return n, err
		}
		if from.Addr().Unmap() == c.peer.Addr().Unmap() && from.Port() == c.peer.Port() {
			return n, nil
		}
	}
}

func (c *peerConn) Write(b []byte) (int, error) {
	return c.WriteToUDPAddrPort(b, c.peer)
}

func (c *peerConn) RemoteAddr() net.Addr {
	return net.UDPAddrFromAddrPort(c.peer)
}

// ReceiveLimit returns MTU minus the minimal IP and UDP headers.
func (t *UDPTransport) ReceiveLimit() int {
	return t.receiveLimit
}

// SendLimit returns MTU minus the maximal IP and UDP headers.
func (t *UDPTransport) SendLimit() int {
	return t.sendLimit
}

// Receive reads one datagram.
func (t *UDPTransport) Receive(buf []byte, timeout time.Duration) (int, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, t.classify(err)
	}

	if len(buf) > t.receiveLimit {
		buf = buf[:t.receiveLimit]
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		return 0, t.classify(err)
	}
	return n, nil
}

// Send writes one datagram.
func (t *UDPTransport) Send(buf []byte) error {
	if len(buf) > t.sendLimit {
		return fmt.Errorf("%w: %d > %d", ErrDatagramTooLarge, len(buf), t.sendLimit)
	}
	if t.closed.Load() {
		return ErrClosed
	}

	if _, err := t.conn.Write(buf); err != nil {
		return t.classify(err)
	}
	return nil
}

// Close closes the socket.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// LocalAddr returns the local socket address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr returns the connected peer address.
func (t *UDPTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// classify maps socket errors onto the transport sentinels.
func (t *UDPTransport) classify(err error) error {
	if t.closed.Load() || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("udp: %w", err)
}
