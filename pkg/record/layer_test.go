package record

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/epoch"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/transport"
	"github.com/mash-protocol/mash-dtls/pkg/transport/mocks"
)

const shortWait = 50 * time.Millisecond

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) discards(reason log.DiscardReason) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Discard != nil && e.Discard.Reason == reason {
			n++
		}
	}
	return n
}

type layerPair struct {
	client, server      *Layer
	clientPipe, srvPipe *transport.PipeTransport
	serverLog           *captureLogger
}

func newLayerPair(t *testing.T, serverOpts Options) *layerPair {
	t.Helper()
	cp, sp, err := transport.NewPipe(transport.DefaultMTU)
	require.NoError(t, err)

	client, err := New(cp, Options{Role: log.RoleClient})
	require.NoError(t, err)

	capture := &captureLogger{}
	serverOpts.Role = log.RoleServer
	serverOpts.ProtocolLogger = capture
	server, err := New(sp, serverOpts)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return &layerPair{client: client, server: server, clientPipe: cp, srvPipe: sp, serverLog: capture}
}

func fragment(t *testing.T, typ handshake.MessageType, seq uint16, body []byte) []byte {
	t.Helper()
	frags, err := handshake.Fragment(handshake.Message{Type: typ, Sequence: seq, Body: body}, 1024)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	return frags[0]
}

func rawRecord(ct ContentType, epochNum uint16, seq uint64, payload []byte) []byte {
	h := Header{Type: ct, Version: VersionDTLS12, Epoch: epochNum, Sequence: seq, Length: uint16(len(payload))}
	return append(h.Append(nil), payload...)
}

func receive(t *testing.T, l *Layer) []byte {
	t.Helper()
	buf := make([]byte, l.ReceiveLimit())
	n, err := l.Receive(buf, time.Second)
	require.NoError(t, err)
	return buf[:n]
}

func assertNothing(t *testing.T, l *Layer) {
	t.Helper()
	_, err := l.Receive(make([]byte, l.ReceiveLimit()), shortWait)
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

// completeHandshake switches both layers to epoch 1 by exchanging finished
// messages, then marks the handshake done.
func completeHandshake(t *testing.T, p *layerPair, clientHook, serverHook transport.RetransmitHook) {
	t.Helper()
	c, s, err := epoch.DeriveCiphers(epoch.SuiteChaCha20Poly1305, []byte("shared secret"), []byte("salt"))
	require.NoError(t, err)
	require.NoError(t, p.client.InitPendingEpoch(c))
	require.NoError(t, p.server.InitPendingEpoch(s))

	clientFinished := fragment(t, handshake.TypeFinished, 1, bytes.Repeat([]byte{0xc1}, 12))
	require.NoError(t, p.client.Send(clientFinished))
	assert.Equal(t, clientFinished, receive(t, p.server))

	serverFinished := fragment(t, handshake.TypeFinished, 1, bytes.Repeat([]byte{0x5e}, 12))
	require.NoError(t, p.server.Send(serverFinished))
	assert.Equal(t, serverFinished, receive(t, p.client))

	require.NoError(t, p.client.HandshakeSuccessful(clientHook))
	require.NoError(t, p.server.HandshakeSuccessful(serverHook))
}

func TestLayerLimits(t *testing.T) {
	p := newLayerPair(t, Options{})

	assert.Equal(t, 1500-28-HeaderSize, p.server.ReceiveLimit())
	assert.Equal(t, 1500-84-HeaderSize, p.server.SendLimit())

	completeHandshake(t, p, nil, nil)

	assert.Equal(t, 1500-28-HeaderSize-16, p.server.ReceiveLimit())
	assert.Equal(t, 1500-84-HeaderSize-16, p.server.SendLimit())
}

func TestLayerHandshakeRecordsInInitialEpoch(t *testing.T) {
	p := newLayerPair(t, Options{})

	hello := fragment(t, handshake.TypeClientHello, 0, []byte("hello"))
	require.NoError(t, p.client.Send(hello))

	assert.Equal(t, hello, receive(t, p.server))
	assert.True(t, p.server.InHandshake())

	read, write := p.server.Epochs()
	assert.Equal(t, uint16(0), read)
	assert.Equal(t, uint16(0), write)
	assert.NotEmpty(t, p.server.ID())
	assert.NotEqual(t, p.client.ID(), p.server.ID())
}

func TestLayerEpochSwitchAndApplicationData(t *testing.T) {
	p := newLayerPair(t, Options{})
	completeHandshake(t, p, nil, nil)

	assert.False(t, p.client.InHandshake())
	read, write := p.client.Epochs()
	assert.Equal(t, uint16(1), read)
	assert.Equal(t, uint16(1), write)

	require.NoError(t, p.client.Send([]byte("ping")))
	assert.Equal(t, []byte("ping"), receive(t, p.server))

	require.NoError(t, p.server.Send([]byte("pong")))
	assert.Equal(t, []byte("pong"), receive(t, p.client))
}

func TestLayerDropsReplayedRecord(t *testing.T) {
	p := newLayerPair(t, Options{})
	p.clientPipe.SetFilter(func(b []byte) [][]byte { return [][]byte{b, b} })

	hello := fragment(t, handshake.TypeClientHello, 0, nil)
	require.NoError(t, p.client.Send(hello))

	assert.Equal(t, hello, receive(t, p.server))
	assertNothing(t, p.server)
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardReplay))
}

func TestLayerDropsTooOldRecord(t *testing.T) {
	p := newLayerPair(t, Options{})

	hello := fragment(t, handshake.TypeClientHello, 0, nil)
	require.NoError(t, p.clientPipe.Send(rawRecord(ContentHandshake, 0, 100, hello)))
	assert.Equal(t, hello, receive(t, p.server))

	// Never seen, but 64 behind the newest.
	require.NoError(t, p.clientPipe.Send(rawRecord(ContentHandshake, 0, 36, hello)))
	assertNothing(t, p.server)
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardReplay))

	require.NoError(t, p.clientPipe.Send(rawRecord(ContentHandshake, 0, 37, hello)))
	assert.Equal(t, hello, receive(t, p.server))
}

func TestLayerDropsUnknownEpoch(t *testing.T) {
	p := newLayerPair(t, Options{})

	require.NoError(t, p.clientPipe.Send(rawRecord(ContentHandshake, 5, 0, []byte{1})))
	assertNothing(t, p.server)
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardUnknownEpoch))
}

func TestLayerDropsApplicationDataDuringHandshake(t *testing.T) {
	p := newLayerPair(t, Options{})

	require.NoError(t, p.clientPipe.Send(rawRecord(ContentApplicationData, 0, 0, []byte("early"))))
	assertNothing(t, p.server)
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardUnexpected))
}

func TestLayerDropsMalformedAndKeepsGoing(t *testing.T) {
	p := newLayerPair(t, Options{})

	hello := fragment(t, handshake.TypeClientHello, 0, nil)
	datagram := rawRecord(ContentType(99), 0, 0, []byte{1, 2})
	datagram = append(datagram, rawRecord(ContentHandshake, 0, 1, hello)...)
	require.NoError(t, p.clientPipe.Send(datagram))

	assert.Equal(t, hello, receive(t, p.server))
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardMalformed))

	require.NoError(t, p.clientPipe.Send([]byte{22, 0xfe}))
	assertNothing(t, p.server)
	assert.Equal(t, 2, p.serverLog.discards(log.DiscardMalformed))
}

func TestLayerMultipleRecordsPerDatagram(t *testing.T) {
	p := newLayerPair(t, Options{})

	a := fragment(t, handshake.TypeServerHello, 0, []byte("a"))
	b := fragment(t, handshake.TypeCertificate, 1, []byte("b"))
	datagram := append(rawRecord(ContentHandshake, 0, 0, a), rawRecord(ContentHandshake, 0, 1, b)...)
	require.NoError(t, p.clientPipe.Send(datagram))

	assert.Equal(t, a, receive(t, p.server))
	assert.Equal(t, b, receive(t, p.server))
}

func TestLayerDropsTamperedRecord(t *testing.T) {
	p := newLayerPair(t, Options{})
	completeHandshake(t, p, nil, nil)

	p.clientPipe.SetFilter(func(b []byte) [][]byte {
		tampered := bytes.Clone(b)
		tampered[len(tampered)-1] ^= 0x01
		return [][]byte{tampered}
	})
	require.NoError(t, p.client.Send([]byte("secret")))
	assertNothing(t, p.server)
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardAuthentication))

	p.clientPipe.SetFilter(nil)
	require.NoError(t, p.client.Send([]byte("again")))
	assert.Equal(t, []byte("again"), receive(t, p.server))
}

func TestLayerReceivedFatalAlert(t *testing.T) {
	p := newLayerPair(t, Options{})

	a := alert.Alert{Level: alert.LevelFatal, Description: alert.HandshakeFailure}
	require.NoError(t, p.clientPipe.Send(rawRecord(ContentAlert, 0, 0, a.Marshal())))

	_, err := p.server.Receive(make([]byte, 64), time.Second)
	fe, ok := alert.AsFatal(err)
	require.True(t, ok)
	assert.True(t, fe.Received)
	assert.Equal(t, alert.HandshakeFailure, fe.Description)
	assert.True(t, p.server.Failed())
	assert.True(t, p.server.Closed())

	_, err = p.server.Receive(make([]byte, 64), shortWait)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestLayerMalformedAlert(t *testing.T) {
	p := newLayerPair(t, Options{})

	require.NoError(t, p.clientPipe.Send(rawRecord(ContentAlert, 0, 0, []byte{2})))

	_, err := p.server.Receive(make([]byte, 64), time.Second)
	fe, ok := alert.AsFatal(err)
	require.True(t, ok)
	assert.False(t, fe.Received)
	assert.Equal(t, alert.DecodeError, fe.Description)
}

func TestLayerWarningAlertIgnored(t *testing.T) {
	p := newLayerPair(t, Options{})

	a := alert.Alert{Level: alert.LevelWarning, Description: alert.UserCanceled}
	hello := fragment(t, handshake.TypeClientHello, 0, nil)
	datagram := append(rawRecord(ContentAlert, 0, 0, a.Marshal()), rawRecord(ContentHandshake, 0, 1, hello)...)
	require.NoError(t, p.clientPipe.Send(datagram))

	assert.Equal(t, hello, receive(t, p.server))
	assert.False(t, p.server.Closed())
}

func TestLayerFailNotifiesPeer(t *testing.T) {
	p := newLayerPair(t, Options{})

	p.client.Fail(alert.BadRecordMAC)
	p.client.Fail(alert.InternalError)

	assert.True(t, p.client.Failed())
	assert.ErrorIs(t, p.client.Send([]byte("x")), transport.ErrClosed)

	_, err := p.server.Receive(make([]byte, 64), time.Second)
	fe, ok := alert.AsFatal(err)
	require.True(t, ok)
	assert.True(t, fe.Received)
	assert.Equal(t, alert.BadRecordMAC, fe.Description)

	_, err = p.server.Receive(make([]byte, 64), shortWait)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestLayerCloseNotify(t *testing.T) {
	p := newLayerPair(t, Options{})
	completeHandshake(t, p, nil, nil)

	require.NoError(t, p.client.Close())
	require.NoError(t, p.client.Close())
	assert.False(t, p.client.Failed())

	_, err := p.server.Receive(make([]byte, 64), time.Second)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.False(t, p.server.Failed())
}

func TestLayerFailAfterCloseKeepsCleanClose(t *testing.T) {
	p := newLayerPair(t, Options{})
	require.NoError(t, p.client.Close())
	p.client.Fail(alert.InternalError)
	assert.True(t, p.client.Closed())
	assert.False(t, p.client.Failed())
}

func TestLayerCloseAndFailRace(t *testing.T) {
	for range 50 {
		p := newLayerPair(t, Options{})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = p.client.Close()
		}()
		go func() {
			defer wg.Done()
			p.client.Fail(alert.InternalError)
		}()
		wg.Wait()

		// Whichever call won decides both the outcome and the alert sent.
		_, err := p.server.Receive(make([]byte, 64), time.Second)
		if p.client.Failed() {
			fe, ok := alert.AsFatal(err)
			require.True(t, ok, "failed layer sent %v", err)
			assert.Equal(t, alert.InternalError, fe.Description)
		} else {
			assert.ErrorIs(t, err, transport.ErrClosed)
		}
	}
}

func TestLayerCloseUnblocksReceive(t *testing.T) {
	p := newLayerPair(t, Options{})

	errCh := make(chan error, 1)
	go func() {
		_, err := p.server.Receive(make([]byte, 64), 0)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.server.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("receive did not unblock on close")
	}
}

func TestLayerSendTooLarge(t *testing.T) {
	p := newLayerPair(t, Options{})

	err := p.client.Send(make([]byte, p.client.SendLimit()+1))
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestLayerReceiveBufferTooSmall(t *testing.T) {
	p := newLayerPair(t, Options{})

	require.NoError(t, p.client.Send(fragment(t, handshake.TypeClientHello, 0, make([]byte, 100))))

	_, err := p.server.Receive(make([]byte, 10), time.Second)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestLayerEpochStateErrors(t *testing.T) {
	p := newLayerPair(t, Options{})

	assert.ErrorIs(t, p.client.HandshakeSuccessful(nil), ErrHandshakeState)

	err := p.client.Send(fragment(t, handshake.TypeFinished, 0, make([]byte, 12)))
	assert.ErrorIs(t, err, ErrHandshakeState)

	require.NoError(t, p.client.InitPendingEpoch(epoch.NullCipher{}))
	assert.ErrorIs(t, p.client.InitPendingEpoch(epoch.NullCipher{}), ErrHandshakeState)
	assert.ErrorIs(t, p.client.HandshakeSuccessful(nil), ErrHandshakeState)
}

func TestLayerRetransmitHook(t *testing.T) {
	p := newLayerPair(t, Options{})

	serverHook := mocks.NewMockRetransmitHook(t)
	clientHook := mocks.NewMockRetransmitHook(t)
	completeHandshake(t, p, clientHook, serverHook)

	// The client resends its final flight as originally sent.
	cke := fragment(t, handshake.TypeClientKeyExchange, 0, []byte("key"))
	finished := fragment(t, handshake.TypeFinished, 1, bytes.Repeat([]byte{0xc1}, 12))

	serverHook.EXPECT().ReceivedHandshakeRecord(uint16(0), cke).Return().Once()
	serverHook.EXPECT().ReceivedHandshakeRecord(uint16(1), finished).Return().Once()

	p.client.ResetWriteEpoch()
	_, write := p.client.Epochs()
	assert.Equal(t, uint16(0), write)

	require.NoError(t, p.client.Send(cke))
	require.NoError(t, p.client.Send(finished))

	_, write = p.client.Epochs()
	assert.Equal(t, uint16(1), write)

	assertNothing(t, p.server)

	// Application data still flows afterwards.
	require.NoError(t, p.client.Send([]byte("data")))
	assert.Equal(t, []byte("data"), receive(t, p.server))
}

func TestLayerRetransmitEpochExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	p := newLayerPair(t, Options{Now: clock, RetransmitEpochLifetime: time.Minute})
	serverHook := mocks.NewMockRetransmitHook(t)
	completeHandshake(t, p, mocks.NewMockRetransmitHook(t), serverHook)

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()

	p.client.ResetWriteEpoch()
	require.NoError(t, p.client.Send(fragment(t, handshake.TypeClientKeyExchange, 0, nil)))

	assertNothing(t, p.server)
	assert.Equal(t, 1, p.serverLog.discards(log.DiscardUnknownEpoch))
}

func TestLayerThroughAdapter(t *testing.T) {
	p := newLayerPair(t, Options{})
	adapter := transport.NewAdapter(p.server)

	a := alert.Alert{Level: alert.LevelFatal, Description: alert.DecryptError}
	require.NoError(t, p.clientPipe.Send(rawRecord(ContentAlert, 0, 0, a.Marshal())))

	_, err := adapter.Receive(make([]byte, 64), time.Second)
	fe, ok := alert.AsFatal(err)
	require.True(t, ok)
	assert.Equal(t, alert.DecryptError, fe.Description)
	assert.True(t, fe.Received)

	_, err = adapter.Receive(make([]byte, 64), shortWait)
	assert.ErrorIs(t, err, transport.ErrClosed)
}
