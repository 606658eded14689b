package dtls_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/config"
	"github.com/mash-protocol/mash-dtls/pkg/epoch"
	"github.com/mash-protocol/mash-dtls/pkg/flight"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/record"
	"github.com/mash-protocol/mash-dtls/pkg/transport"
)

const e2eConfig = `
mtu: 1280
receive_timeout: 5s
suite: aes-128-gcm
retransmit:
  initial: 50ms
  max: 1s
  max_attempts: 8
`

type side struct {
	layer   *record.Layer
	flights *flight.Manager
	cipher  epoch.Cipher
}

func newSides(t *testing.T, cfg *config.Config) (client, server *side) {
	t.Helper()

	ct, st, err := transport.NewLoopbackPair(cfg.MTU)
	require.NoError(t, err)

	suite, err := cfg.CipherSuite()
	require.NoError(t, err)
	cc, sc, err := epoch.DeriveCiphers(suite, []byte("e2e-secret"), []byte("e2e-salt"))
	require.NoError(t, err)

	build := func(d transport.Datagram, role log.Role, c epoch.Cipher) *side {
		l, err := record.New(d, cfg.RecordOptions(role, nil, nil))
		require.NoError(t, err)
		m, err := flight.NewManager(l, cfg.FlightConfig(l, role, nil, nil))
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		return &side{layer: l, flights: m, cipher: c}
	}
	return build(ct, log.RoleClient, cc), build(st, log.RoleServer, sc)
}

func expectMessage(m *flight.Manager, want handshake.MessageType) error {
	msg, err := m.ReceiveMessage()
	if err != nil {
		return err
	}
	if msg.Type != want {
		return errors.New("unexpected " + msg.Type.String())
	}
	return nil
}

// handshakeOver drives a four-flight handshake with a certificate that
// needs fragmenting at the configured MTU.
func handshakeOver(t *testing.T, client, server *side) {
	t.Helper()

	certificate := make([]byte, 4000)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- func() error {
			if err := expectMessage(server.flights, handshake.TypeClientHello); err != nil {
				return err
			}
			for _, m := range []struct {
				t    handshake.MessageType
				body []byte
			}{
				{handshake.TypeServerHello, []byte("server-random")},
				{handshake.TypeCertificate, certificate},
				{handshake.TypeServerHelloDone, nil},
			} {
				if err := server.flights.SendMessage(m.t, m.body); err != nil {
					return err
				}
			}
			if err := server.layer.InitPendingEpoch(server.cipher); err != nil {
				return err
			}
			if err := expectMessage(server.flights, handshake.TypeClientKeyExchange); err != nil {
				return err
			}
			if err := expectMessage(server.flights, handshake.TypeFinished); err != nil {
				return err
			}
			if err := server.flights.SendMessage(handshake.TypeFinished, make([]byte, 12)); err != nil {
				return err
			}
			return server.flights.Finish()
		}()
	}()

	require.NoError(t, client.flights.SendMessage(handshake.TypeClientHello, []byte("client-random")))
	require.NoError(t, expectMessage(client.flights, handshake.TypeServerHello))
	require.NoError(t, expectMessage(client.flights, handshake.TypeCertificate))
	require.NoError(t, expectMessage(client.flights, handshake.TypeServerHelloDone))
	require.NoError(t, client.layer.InitPendingEpoch(client.cipher))
	require.NoError(t, client.flights.SendMessage(handshake.TypeClientKeyExchange, []byte("psk")))
	require.NoError(t, client.flights.SendMessage(handshake.TypeFinished, make([]byte, 12)))
	require.NoError(t, expectMessage(client.flights, handshake.TypeFinished))
	require.NoError(t, client.flights.Finish())

	select {
	case err := <-serverDone:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server handshake did not complete")
	}
}

// TestE2E_ConfiguredHandshake runs the stack over UDP loopback sockets with
// settings parsed from YAML.
func TestE2E_ConfiguredHandshake(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg, err := config.Parse([]byte(e2eConfig))
	require.NoError(t, err)
	client, server := newSides(t, cfg)

	handshakeOver(t, client, server)

	for _, s := range []*side{client, server} {
		read, write := s.layer.Epochs()
		assert.Equal(t, uint16(1), read)
		assert.Equal(t, uint16(1), write)
		assert.False(t, s.layer.InHandshake())
	}

	ca, sa := transport.NewAdapter(client.layer), transport.NewAdapter(server.layer)
	buf := make([]byte, sa.ReceiveLimit())

	require.NoError(t, ca.Send([]byte("request")))
	n, err := sa.Receive(buf, cfg.ReceiveTimeout)
	require.NoError(t, err)
	assert.Equal(t, "request", string(buf[:n]))

	require.NoError(t, sa.Send([]byte("response")))
	n, err = ca.Receive(buf, cfg.ReceiveTimeout)
	require.NoError(t, err)
	assert.Equal(t, "response", string(buf[:n]))

	// Records are sized for the configured MTU, not the default.
	_, udpSend := transport.Limits(cfg.MTU)
	assert.Less(t, ca.SendLimit(), udpSend)
	assert.ErrorIs(t, client.layer.Send(make([]byte, ca.SendLimit()+1)), record.ErrRecordTooLarge)
}

// TestE2E_CloseNotify checks that an orderly close reaches the peer and
// leaves both ends closed.
func TestE2E_CloseNotify(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg, err := config.Parse([]byte(e2eConfig))
	require.NoError(t, err)
	client, server := newSides(t, cfg)
	handshakeOver(t, client, server)

	require.NoError(t, client.layer.Close())

	buf := make([]byte, server.layer.ReceiveLimit())
	_, err = server.layer.Receive(buf, cfg.ReceiveTimeout)
	require.ErrorIs(t, err, transport.ErrClosed)
	assert.True(t, server.layer.Closed())
	assert.False(t, server.layer.Failed())
	assert.ErrorIs(t, server.layer.Send([]byte("late")), transport.ErrClosed)
}

// TestE2E_FatalAlert checks that a failure on one end surfaces as a received
// fatal alert on the other.
func TestE2E_FatalAlert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg, err := config.Parse([]byte(e2eConfig))
	require.NoError(t, err)
	client, server := newSides(t, cfg)
	handshakeOver(t, client, server)

	server.layer.Fail(alert.InternalError)

	buf := make([]byte, client.layer.ReceiveLimit())
	_, err = client.layer.Receive(buf, cfg.ReceiveTimeout)
	fe, ok := alert.AsFatal(err)
	require.True(t, ok, "expected fatal alert, got %v", err)
	assert.True(t, fe.Received)
	assert.Equal(t, alert.InternalError, fe.Description)
	assert.True(t, client.layer.Failed())
}
