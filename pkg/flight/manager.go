package flight

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/cryptobyte"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/transport"
)

// DefaultMaxRetransmits is how often a flight is resent on timeout before
// the handshake is abandoned. With the default timer that is roughly two
// minutes of waiting.
const DefaultMaxRetransmits = 6

// Flight states reported in protocol log events.
const (
	stateIdle     = "idle"
	stateSending  = "sending"
	stateWaiting  = "waiting"
	stateFinished = "finished"
)

// Manager errors.
var (
	// ErrRetransmitsExhausted is the cause of the handshake_failure returned
	// when the peer stayed silent through every retransmission.
	ErrRetransmitsExhausted = errors.New("flight retransmissions exhausted")

	// ErrFinished indicates use of a manager after Finish.
	ErrFinished = errors.New("handshake already finished")
)

// Records is the record layer a Manager drives.
// Implemented by record.Layer.
type Records interface {
	transport.RecordLayer

	// ResetWriteEpoch rewinds the write epoch to where the last flight began.
	ResetWriteEpoch()

	// HandshakeSuccessful ends the handshake and installs hook, if any, for
	// handshake records arriving afterwards.
	HandshakeSuccessful(hook transport.RetransmitHook) error
}

// Config configures a Manager.
type Config struct {
	// Backoff configures the retransmit timer.
	Backoff BackoffConfig

	// MaxRetransmits overrides DefaultMaxRetransmits. Negative retries
	// forever.
	MaxRetransmits int

	// MaxReceiveAhead overrides handshake.DefaultMaxReceiveAhead.
	MaxReceiveAhead int

	// MaxMessageLength overrides handshake.DefaultMaxMessageLength.
	MaxMessageLength int

	// ProtocolLogger receives fragment and flight events. Nil disables them.
	ProtocolLogger log.Logger

	// ConnectionID, Role and RemoteAddr are copied into protocol log events.
	ConnectionID string
	Role         log.Role
	RemoteAddr   string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Manager sends and receives handshake messages as reliable flights.
//
// SendMessage, ReceiveMessage and Finish are called from the handshake
// goroutine. After Finish the Manager may be invoked as retransmit hook from
// whichever goroutine reads the record layer.
type Manager struct {
	rl             Records
	backoff        *Backoff
	maxRetransmits int
	plog           log.Logger
	logger         *slog.Logger
	connID         string
	role           log.Role
	remote         string

	mu       sync.Mutex
	inbound  *handshake.Inbound
	outbound []handshake.Message
	sending  bool
	finished bool
	state    string
	nextSeq  uint16
	flights  int

	// only touched by ReceiveMessage
	buf []byte
}

// NewManager creates a Manager over rl.
func NewManager(rl Records, cfg Config) (*Manager, error) {
	if rl == nil {
		return nil, errors.New("flight: nil record layer")
	}
	maxRetransmits := cfg.MaxRetransmits
	if maxRetransmits == 0 {
		maxRetransmits = DefaultMaxRetransmits
	}
	return &Manager{
		rl:             rl,
		backoff:        NewBackoffWithConfig(cfg.Backoff),
		maxRetransmits: maxRetransmits,
		plog:           log.OrNoop(cfg.ProtocolLogger),
		logger:         cfg.Logger,
		connID:         cfg.ConnectionID,
		role:           cfg.Role,
		remote:         cfg.RemoteAddr,
		inbound:        handshake.NewInbound(cfg.MaxReceiveAhead, cfg.MaxMessageLength),
		state:          stateIdle,
		buf:            make([]byte, rl.ReceiveLimit()),
	}, nil
}

// SendMessage queues a message into the outbound flight and sends it. The
// first message after receiving starts a new flight.
func (m *Manager) SendMessage(msgType handshake.MessageType, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return ErrFinished
	}
	if !m.sending {
		m.inbound.FinishFlight()
		m.outbound = m.outbound[:0]
		m.sending = true
		m.flights++
		m.setState(stateSending, fmt.Sprintf("flight %d", m.flights))
	}

	msg := handshake.Message{
		Type:     msgType,
		Sequence: m.nextSeq,
		Body:     bytes.Clone(body),
	}
	m.nextSeq++
	m.outbound = append(m.outbound, msg)
	return m.writeMessage(msg, false)
}

// ReceiveMessage returns the next handshake message from the peer, resending
// the outbound flight whenever the retransmit timer expires or the peer
// retransmits the flight we answered.
//
// After the configured number of retransmissions the record layer is failed
// and a *alert.FatalError with handshake_failure is returned. Waiting with
// no outbound flight never gives up.
func (m *Manager) ReceiveMessage() (handshake.Message, error) {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return handshake.Message{}, ErrFinished
	}
	if m.sending {
		m.sending = false
		m.setState(stateWaiting, "")
	}
	m.backoff.Reset()
	m.mu.Unlock()

	// Records that deliver nothing must not postpone the timer, so it runs
	// against a fixed deadline that only a resend moves.
	deadline := time.Now().Add(m.backoff.Peek())
	for {
		m.mu.Lock()
		msg, ok := m.inbound.Next()
		m.mu.Unlock()
		if ok {
			m.logMessage(msg)
			return msg, nil
		}

		n, err := m.receiveUntil(deadline)
		if errors.Is(err, transport.ErrTimeout) {
			if err := m.retransmitOnTimeout(); err != nil {
				return handshake.Message{}, err
			}
			deadline = time.Now().Add(m.backoff.Peek())
			continue
		}
		if err != nil {
			return handshake.Message{}, err
		}

		m.mu.Lock()
		resend := m.inbound.Process(m.buf[:n])
		if resend {
			err = m.resendLocked("peer retransmitted")
		}
		m.mu.Unlock()
		if err != nil {
			return handshake.Message{}, err
		}
		if resend {
			deadline = time.Now().Add(m.backoff.Peek())
		}
	}
}

// receiveUntil reads one handshake record, reporting transport.ErrTimeout
// once deadline has passed. A zero wait means forever to the record layer,
// so an expired deadline never reaches it.
func (m *Manager) receiveUntil(deadline time.Time) (int, error) {
	wait := time.Until(deadline)
	if wait <= 0 {
		return 0, transport.ErrTimeout
	}
	return m.rl.Receive(m.buf, wait)
}

func (m *Manager) retransmitOnTimeout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.outbound) == 0 {
		return nil
	}
	if m.maxRetransmits > 0 && m.backoff.Attempts() >= m.maxRetransmits {
		cause := fmt.Errorf("%w: %d attempts", ErrRetransmitsExhausted, m.backoff.Attempts())
		m.emit(log.Event{
			Layer:    log.LayerHandshake,
			Category: log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerHandshake,
				Message: cause.Error(),
				Context: fmt.Sprintf("flight %d", m.flights),
			},
		})
		m.rl.Fail(alert.HandshakeFailure)
		return alert.NewFatal(alert.HandshakeFailure, cause)
	}

	wait := m.backoff.Next()
	return m.resendLocked(fmt.Sprintf("timeout after %s", wait))
}

// ReceivedHandshakeRecord resends the final flight when the peer has
// retransmitted its whole previous flight after the handshake.
func (m *Manager) ReceivedHandshakeRecord(epoch uint16, record []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inbound.Process(record) {
		return
	}
	if err := m.resendLocked(fmt.Sprintf("peer retransmitted under epoch %d", epoch)); err != nil && m.logger != nil {
		m.logger.Warn("final flight resend failed", "conn_id", m.connID, "error", err)
	}
}

// Finish completes the handshake on the record layer. When we sent the final
// flight the Manager stays installed as retransmit hook so it can be resent
// if the peer did not get it.
func (m *Manager) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return ErrFinished
	}

	var hook transport.RetransmitHook
	if m.sending {
		hook = m
	}
	m.inbound.Retire()

	if err := m.rl.HandshakeSuccessful(hook); err != nil {
		return err
	}
	m.finished = true
	reason := "peer sent final flight"
	if hook != nil {
		reason = "final flight kept for retransmission"
	}
	m.setState(stateFinished, reason)
	return nil
}

func (m *Manager) resendLocked(reason string) error {
	m.rl.ResetWriteEpoch()
	for _, msg := range m.outbound {
		if err := m.writeMessage(msg, true); err != nil {
			return err
		}
	}
	m.emitState(m.state, m.state, "resent: "+reason)
	return nil
}

// writeMessage fragments msg to the current send limit and sends one record
// per fragment.
func (m *Manager) writeMessage(msg handshake.Message, retransmit bool) error {
	fragments, err := handshake.Fragment(msg, m.rl.SendLimit())
	if err != nil {
		return fmt.Errorf("fragment %s: %w", msg.Type, err)
	}
	for _, frag := range fragments {
		if err := m.rl.Send(frag); err != nil {
			return err
		}
		m.logFragment(frag, retransmit)
	}
	return nil
}

func (m *Manager) setState(state, reason string) {
	old := m.state
	m.state = state
	m.emitState(old, state, reason)
}

func (m *Manager) emit(ev log.Event) {
	ev.Timestamp = time.Now()
	ev.ConnectionID = m.connID
	ev.LocalRole = m.role
	ev.RemoteAddr = m.remote
	m.plog.Log(ev)
}

func (m *Manager) emitState(from, to, reason string) {
	m.emit(log.Event{
		Layer:    log.LayerHandshake,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityFlight,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
	if m.logger != nil {
		m.logger.Debug("flight state", "conn_id", m.connID, "from", from, "to", to, "reason", reason)
	}
}

func (m *Manager) logFragment(frag []byte, retransmit bool) {
	s := cryptobyte.String(frag)
	h, _, err := handshake.ReadFragment(&s)
	if err != nil {
		return
	}
	m.emit(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerHandshake,
		Category:  log.CategoryMessage,
		Fragment: &log.FragmentEvent{
			Type:           h.Type,
			MessageSeq:     h.Sequence,
			Length:         h.Length,
			FragmentOffset: h.FragmentOffset,
			FragmentLength: h.FragmentLength,
			Retransmit:     retransmit,
		},
	})
}

func (m *Manager) logMessage(msg handshake.Message) {
	m.emit(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerHandshake,
		Category:  log.CategoryMessage,
		Fragment: &log.FragmentEvent{
			Type:           msg.Type,
			MessageSeq:     msg.Sequence,
			Length:         uint32(len(msg.Body)),
			FragmentLength: uint32(len(msg.Body)),
		},
	})
	if m.logger != nil {
		m.logger.Debug("handshake message received", "conn_id", m.connID,
			"type", msg.Type.String(), "seq", msg.Sequence, "len", len(msg.Body))
	}
}

// Compile-time interface satisfaction check.
var _ transport.RetransmitHook = (*Manager)(nil)
