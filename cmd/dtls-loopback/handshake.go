package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/epoch"
	"github.com/mash-protocol/mash-dtls/pkg/flight"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/record"
)

const (
	randomSize     = 32
	verifyDataSize = 12
)

var errFinishedMismatch = errors.New("finished verify data mismatch")

// peer is one end of the demo handshake: a pre-shared key exchange with the
// message pattern of a full DTLS 1.2 handshake, so flights, fragmentation and
// the epoch switch are all exercised.
type peer struct {
	role       log.Role
	layer      *record.Layer
	flights    *flight.Manager
	suite      epoch.Suite
	psk        []byte
	certSize   int
	transcript hash.Hash
}

func newPeer(role log.Role, layer *record.Layer, flights *flight.Manager, suite epoch.Suite, psk []byte, certSize int) *peer {
	return &peer{
		role:       role,
		layer:      layer,
		flights:    flights,
		suite:      suite,
		psk:        psk,
		certSize:   certSize,
		transcript: sha256.New(),
	}
}

func (p *peer) send(t handshake.MessageType, body []byte) error {
	p.record(t, body)
	return p.flights.SendMessage(t, body)
}

func (p *peer) expect(want handshake.MessageType) ([]byte, error) {
	msg, err := p.flights.ReceiveMessage()
	if err != nil {
		return nil, err
	}
	if msg.Type != want {
		p.layer.Fail(alert.UnexpectedMessage)
		return nil, alert.NewFatal(alert.UnexpectedMessage,
			fmt.Errorf("received %s, want %s", msg.Type, want))
	}
	if want != handshake.TypeFinished {
		p.record(msg.Type, msg.Body)
	}
	return msg.Body, nil
}

func (p *peer) record(t handshake.MessageType, body []byte) {
	p.transcript.Write([]byte{byte(t)})
	p.transcript.Write(body)
}

// verifyData binds the transcript so far to the key and the sender.
func (p *peer) verifyData(sender log.Role) []byte {
	mac := hmac.New(sha256.New, p.psk)
	mac.Write([]byte(sender.String()))
	mac.Write(p.transcript.Sum(nil))
	return mac.Sum(nil)[:verifyDataSize]
}

func (p *peer) checkFinished(body []byte, sender log.Role) error {
	if !hmac.Equal(body, p.verifyData(sender)) {
		p.layer.Fail(alert.DecryptError)
		return alert.NewFatal(alert.DecryptError, errFinishedMismatch)
	}
	return nil
}

func (p *peer) ciphers(clientRandom, serverRandom []byte) (epoch.Cipher, error) {
	salt := append(bytes.Clone(clientRandom), serverRandom...)
	c, s, err := epoch.DeriveCiphers(p.suite, p.psk, salt)
	if err != nil {
		return nil, err
	}
	if p.role == log.RoleClient {
		return c, nil
	}
	return s, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	return b, nil
}

// runClient performs flights 1 and 3 and waits for the server's Finished.
func (p *peer) runClient() error {
	clientRandom, err := randomBytes(randomSize)
	if err != nil {
		return err
	}
	if err := p.send(handshake.TypeClientHello, clientRandom); err != nil {
		return err
	}

	serverRandom, err := p.expect(handshake.TypeServerHello)
	if err != nil {
		return err
	}
	if _, err := p.expect(handshake.TypeCertificate); err != nil {
		return err
	}
	if _, err := p.expect(handshake.TypeServerHelloDone); err != nil {
		return err
	}

	c, err := p.ciphers(clientRandom, serverRandom)
	if err != nil {
		return err
	}
	if err := p.layer.InitPendingEpoch(c); err != nil {
		return err
	}
	if err := p.send(handshake.TypeClientKeyExchange, []byte("psk_identity")); err != nil {
		return err
	}
	clientFinished := p.verifyData(log.RoleClient)
	if err := p.send(handshake.TypeFinished, clientFinished); err != nil {
		return err
	}

	serverFinished, err := p.expect(handshake.TypeFinished)
	if err != nil {
		return err
	}
	if err := p.checkFinished(serverFinished, log.RoleServer); err != nil {
		return err
	}
	return p.flights.Finish()
}

// runServer answers with flights 2 and 4. Flight 2 carries a filler
// certificate large enough to need fragmentation.
func (p *peer) runServer() error {
	clientRandom, err := p.expect(handshake.TypeClientHello)
	if err != nil {
		return err
	}
	serverRandom, err := randomBytes(randomSize)
	if err != nil {
		return err
	}
	certificate, err := randomBytes(p.certSize)
	if err != nil {
		return err
	}

	if err := p.send(handshake.TypeServerHello, serverRandom); err != nil {
		return err
	}
	if err := p.send(handshake.TypeCertificate, certificate); err != nil {
		return err
	}
	if err := p.send(handshake.TypeServerHelloDone, nil); err != nil {
		return err
	}

	c, err := p.ciphers(clientRandom, serverRandom)
	if err != nil {
		return err
	}
	if err := p.layer.InitPendingEpoch(c); err != nil {
		return err
	}

	if _, err := p.expect(handshake.TypeClientKeyExchange); err != nil {
		return err
	}
	clientFinished, err := p.expect(handshake.TypeFinished)
	if err != nil {
		return err
	}
	if err := p.checkFinished(clientFinished, log.RoleClient); err != nil {
		return err
	}
	p.record(handshake.TypeFinished, clientFinished)

	serverFinished := p.verifyData(log.RoleServer)
	if err := p.send(handshake.TypeFinished, serverFinished); err != nil {
		return err
	}
	return p.flights.Finish()
}
