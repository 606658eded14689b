package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync/atomic"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/config"
	"github.com/mash-protocol/mash-dtls/pkg/flight"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/record"
	"github.com/mash-protocol/mash-dtls/pkg/transport"
)

// Transport kinds accepted by -transport.
const (
	TransportPipe = "pipe"
	TransportUDP  = "udp"
)

// Options configures one demo run.
type Options struct {
	Config    *config.Config
	Transport string

	// Loss is the probability that a datagram is dropped during the
	// handshake. Application data is never dropped.
	Loss float64

	Messages int
	CertSize int
	PSK      []byte

	// ProtocolLogger receives the capture of both endpoints. May be nil.
	ProtocolLogger log.Logger
	Logger         *slog.Logger

	// Per-sender drop decisions on outbound datagrams. They take
	// precedence over Loss.
	clientDrop func(datagram []byte) bool
	serverDrop func(datagram []byte) bool
}

// Report summarizes a completed run.
type Report struct {
	Transport     string
	Suite         string
	HandshakeTime time.Duration
	Echoed        int
	Dropped       int64
	ClientID      string
	ServerID      string
	ClientEpochs  [2]uint16
	ServerEpochs  [2]uint16
}

// lossy drops outbound datagrams while enabled.
type lossy struct {
	transport.Datagram
	drop    func(datagram []byte) bool
	enabled atomic.Bool
	dropped atomic.Int64
}

func newLossy(d transport.Datagram, drop func(datagram []byte) bool) *lossy {
	l := &lossy{Datagram: d, drop: drop}
	l.enabled.Store(drop != nil)
	return l
}

func (l *lossy) Send(buf []byte) error {
	if l.enabled.Load() && l.drop(buf) {
		l.dropped.Add(1)
		return nil
	}
	return l.Datagram.Send(buf)
}

// RemoteAddr exposes the wrapped transport's peer address, if it has one.
func (l *lossy) RemoteAddr() net.Addr {
	if ra, ok := l.Datagram.(interface{ RemoteAddr() net.Addr }); ok {
		return ra.RemoteAddr()
	}
	return nil
}

func newTransports(kind string, mtu int) (transport.Datagram, transport.Datagram, error) {
	switch kind {
	case TransportPipe:
		return pipePair(mtu)
	case TransportUDP:
		return udpPair(mtu)
	default:
		return nil, nil, fmt.Errorf("unknown transport %q (want %s or %s)", kind, TransportPipe, TransportUDP)
	}
}

func pipePair(mtu int) (transport.Datagram, transport.Datagram, error) {
	a, b, err := transport.NewPipe(mtu)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func udpPair(mtu int) (transport.Datagram, transport.Datagram, error) {
	a, b, err := transport.NewLoopbackPair(mtu)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func randomLoss(p float64) func([]byte) bool {
	if p <= 0 {
		return nil
	}
	return func([]byte) bool { return rand.Float64() < p }
}

type endpoint struct {
	peer  *peer
	layer *record.Layer
	net   *lossy
}

func newEndpoint(opts Options, role log.Role, t transport.Datagram, drop func([]byte) bool, logger *slog.Logger) (*endpoint, error) {
	cfg := opts.Config
	suite, err := cfg.CipherSuite()
	if err != nil {
		return nil, err
	}

	nw := newLossy(t, drop)
	layer, err := record.New(nw, cfg.RecordOptions(role, opts.ProtocolLogger, logger))
	if err != nil {
		return nil, err
	}
	mgr, err := flight.NewManager(layer, cfg.FlightConfig(layer, role, opts.ProtocolLogger, logger))
	if err != nil {
		return nil, err
	}
	return &endpoint{
		peer:  newPeer(role, layer, mgr, suite, opts.PSK, opts.CertSize),
		layer: layer,
		net:   nw,
	}, nil
}

// Run performs a handshake between two in-process endpoints and echoes
// opts.Messages application records through the server.
func Run(opts Options) (*Report, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if len(opts.PSK) == 0 {
		return nil, errors.New("psk must not be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clientDrop, serverDrop := opts.clientDrop, opts.serverDrop
	if clientDrop == nil {
		clientDrop = randomLoss(opts.Loss)
	}
	if serverDrop == nil {
		serverDrop = randomLoss(opts.Loss)
	}

	ct, st, err := newTransports(opts.Transport, opts.Config.MTU)
	if err != nil {
		return nil, err
	}
	client, err := newEndpoint(opts, log.RoleClient, ct, clientDrop, logger.With("role", "client"))
	if err != nil {
		ct.Close()
		st.Close()
		return nil, err
	}
	server, err := newEndpoint(opts, log.RoleServer, st, serverDrop, logger.With("role", "server"))
	if err != nil {
		client.layer.Close()
		st.Close()
		return nil, err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.peer.runServer(); err != nil {
			serverErr <- fmt.Errorf("server handshake: %w", err)
			return
		}
		serverErr <- echo(server.layer, opts.Config.ReceiveTimeout)
	}()

	start := time.Now()
	if err := client.peer.runClient(); err != nil {
		client.layer.Close()
		server.layer.Close()
		<-serverErr
		return nil, fmt.Errorf("client handshake: %w", err)
	}
	report := &Report{
		Transport:     opts.Transport,
		Suite:         opts.Config.Suite,
		HandshakeTime: time.Since(start),
		ClientID:      client.layer.ID(),
		ServerID:      server.layer.ID(),
	}
	client.net.enabled.Store(false)
	server.net.enabled.Store(false)
	logger.Info("handshake complete", "duration", report.HandshakeTime)

	report.Echoed, err = ping(client.layer, opts.Messages, opts.Config.ReceiveTimeout)
	report.Dropped = client.net.dropped.Load() + server.net.dropped.Load()
	r, w := client.layer.Epochs()
	report.ClientEpochs = [2]uint16{r, w}
	r, w = server.layer.Epochs()
	report.ServerEpochs = [2]uint16{r, w}

	client.layer.Close()
	if err != nil {
		server.layer.Close()
		<-serverErr
		return report, err
	}
	if err := <-serverErr; err != nil {
		return report, err
	}
	return report, nil
}

// echo returns every application record to the sender until the peer
// closes the connection.
func echo(rl transport.RecordLayer, timeout time.Duration) error {
	a := transport.NewAdapter(rl)
	buf := make([]byte, a.ReceiveLimit())
	for {
		n, err := a.Receive(buf, timeout)
		if errors.Is(err, transport.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("server receive: %w", err)
		}
		if err := a.Send(buf[:n]); err != nil {
			return fmt.Errorf("server send: %w", err)
		}
	}
}

func ping(rl transport.RecordLayer, count int, timeout time.Duration) (int, error) {
	a := transport.NewAdapter(rl)
	buf := make([]byte, a.ReceiveLimit())
	for i := range count {
		msg := fmt.Appendf(nil, "ping %d", i)
		if err := a.Send(msg); err != nil {
			return i, fmt.Errorf("client send: %w", err)
		}
		n, err := a.Receive(buf, timeout)
		if err != nil {
			return i, fmt.Errorf("client receive: %w", err)
		}
		if !bytes.Equal(buf[:n], msg) {
			return i, fmt.Errorf("echo mismatch: got %q, want %q", buf[:n], msg)
		}
	}
	return count, nil
}
