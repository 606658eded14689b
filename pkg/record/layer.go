package record

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/epoch"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/transport"
)

// DefaultRetransmitEpochLifetime is how long handshake records of the
// superseded epoch are still accepted after the handshake completes.
const DefaultRetransmitEpochLifetime = 240 * time.Second

// maxLoggedBytes caps the datagram bytes copied into protocol log events.
const maxLoggedBytes = 64

// Record layer errors.
var (
	// ErrRecordTooLarge indicates a send over the plaintext send limit.
	ErrRecordTooLarge = errors.New("record exceeds send limit")

	// ErrBufferTooSmall indicates a receive buffer smaller than the record.
	ErrBufferTooSmall = errors.New("receive buffer too small for record")

	// ErrHandshakeState indicates an epoch operation out of order.
	ErrHandshakeState = errors.New("invalid handshake state")
)

// Options configures a Layer.
type Options struct {
	// Role is recorded in protocol log events.
	Role log.Role

	// RetransmitEpochLifetime overrides DefaultRetransmitEpochLifetime.
	RetransmitEpochLifetime time.Duration

	// ProtocolLogger receives protocol capture events. Nil disables capture.
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Now overrides the clock used for the retransmit epoch expiry.
	Now func() time.Time
}

// Layer protects records sent over a datagram transport and filters what it
// receives. It starts in the handshake with the null cipher at epoch 0.
//
// Send and Receive may be used from different goroutines; concurrent
// Receive calls are serialized.
type Layer struct {
	t        transport.Datagram
	id       string
	role     log.Role
	remote   string
	lifetime time.Duration
	now      func() time.Time
	plog     log.Logger
	logger   *slog.Logger

	mu               sync.Mutex
	inHandshake      bool
	current          *epoch.Epoch
	pending          *epoch.Epoch
	read             *epoch.Epoch
	write            *epoch.Epoch
	retransmit       *epoch.Epoch
	retransmitExpiry time.Time
	hook             transport.RetransmitHook

	recvMu sync.Mutex
	rbuf   []byte
	queued []byte

	closed    atomic.Bool
	failed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a record layer over t.
func New(t transport.Datagram, opts Options) (*Layer, error) {
	initial, err := epoch.New(0, epoch.NullCipher{})
	if err != nil {
		return nil, err
	}

	l := &Layer{
		t:           t,
		id:          uuid.New().String(),
		role:        opts.Role,
		lifetime:    opts.RetransmitEpochLifetime,
		now:         opts.Now,
		plog:        log.OrNoop(opts.ProtocolLogger),
		logger:      opts.Logger,
		inHandshake: true,
		current:     initial,
		read:        initial,
		write:       initial,
		rbuf:        make([]byte, t.ReceiveLimit()),
	}
	if l.lifetime <= 0 {
		l.lifetime = DefaultRetransmitEpochLifetime
	}
	if l.now == nil {
		l.now = time.Now
	}
	if ra, ok := t.(interface{ RemoteAddr() net.Addr }); ok && ra.RemoteAddr() != nil {
		l.remote = ra.RemoteAddr().String()
	}

	l.logState(log.StateEntityConnection, "", "handshaking", "")
	return l, nil
}

// ID returns the connection ID used in protocol log events.
func (l *Layer) ID() string {
	return l.id
}

// RemoteAddr returns the peer address, or "" when the transport has none.
func (l *Layer) RemoteAddr() string {
	return l.remote
}

// InHandshake reports whether HandshakeSuccessful has not been called yet.
func (l *Layer) InHandshake() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inHandshake
}

// Epochs returns the current read and write epoch numbers.
func (l *Layer) Epochs() (read, write uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read.Number(), l.write.Number()
}

// Closed reports whether the layer has been closed or failed.
func (l *Layer) Closed() bool {
	return l.closed.Load()
}

// Failed reports whether the layer was torn down by a fatal alert.
func (l *Layer) Failed() bool {
	return l.failed.Load()
}

// ReceiveLimit returns the largest plaintext a record under the read epoch
// can carry.
func (l *Layer) ReceiveLimit() int {
	l.mu.Lock()
	overhead := l.read.Cipher().Overhead()
	l.mu.Unlock()
	return min(MaxPlaintextLength, l.t.ReceiveLimit()-HeaderSize-overhead)
}

// SendLimit returns the largest plaintext a record under the write epoch
// can carry.
func (l *Layer) SendLimit() int {
	l.mu.Lock()
	overhead := l.write.Cipher().Overhead()
	l.mu.Unlock()
	return min(MaxPlaintextLength, l.t.SendLimit()-HeaderSize-overhead)
}

// InitPendingEpoch installs the cipher state the next epoch will use.
func (l *Layer) InitPendingEpoch(c epoch.Cipher) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		return fmt.Errorf("%w: pending epoch already set", ErrHandshakeState)
	}
	next, err := epoch.New(int(l.write.Number())+1, c)
	if err != nil {
		return err
	}
	l.pending = next
	return nil
}

// HandshakeSuccessful promotes the pending epoch to current. Both directions
// must already have switched to it. When hook is non-nil the superseded epoch
// is kept for the retransmit epoch lifetime and its handshake records are
// passed to hook.
func (l *Layer) HandshakeSuccessful(hook transport.RetransmitHook) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil || l.read == l.current || l.write == l.current {
		return fmt.Errorf("%w: epochs not switched", ErrHandshakeState)
	}
	if hook != nil {
		l.hook = hook
		l.retransmit = l.current
		l.retransmitExpiry = l.now().Add(l.lifetime)
	}
	l.inHandshake = false
	l.current = l.pending
	l.pending = nil

	l.logState(log.StateEntityConnection, "handshaking", "established", "")
	return nil
}

// ResetWriteEpoch rewinds the write epoch so a flight can be resent as it
// was originally sent.
func (l *Layer) ResetWriteEpoch() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.retransmit != nil {
		l.setWriteEpochLocked(l.retransmit, "resend")
	} else {
		l.setWriteEpochLocked(l.current, "resend")
	}
}

// Receive returns the next deliverable record: handshake records while in
// the handshake, application data afterwards. Everything else is consumed
// internally. Replays, undecryptable and malformed records are dropped.
func (l *Layer) Receive(buf []byte, timeout time.Duration) (int, error) {
	l.recvMu.Lock()
	defer l.recvMu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if l.closed.Load() {
			return 0, transport.ErrClosed
		}

		if len(l.queued) == 0 {
			var wait time.Duration
			if timeout > 0 {
				wait = time.Until(deadline)
				if wait <= 0 {
					return 0, transport.ErrTimeout
				}
			}
			n, err := l.t.Receive(l.rbuf, wait)
			if err != nil {
				if !errors.Is(err, transport.ErrTimeout) && l.closed.Load() {
					return 0, transport.ErrClosed
				}
				return 0, err
			}
			l.logDatagram(log.DirectionIn, l.rbuf[:n])
			l.queued = l.rbuf[:n]
		}

		n, ok, err := l.processRecord(buf)
		if err != nil {
			return 0, err
		}
		if ok {
			return n, nil
		}
	}
}

// processRecord consumes one record from the queued datagram.
func (l *Layer) processRecord(buf []byte) (int, bool, error) {
	h, body, rest, err := ParseHeader(l.queued)
	if err != nil {
		size := len(l.queued)
		if errors.Is(err, ErrShortHeader) || errors.Is(err, ErrShortBody) {
			l.queued = nil
			l.logDiscard(log.DiscardMalformed, nil, size)
		} else {
			l.queued = rest
			l.logDiscard(log.DiscardMalformed, &h, size-len(rest))
		}
		return 0, false, nil
	}
	l.queued = rest

	l.mu.Lock()
	l.expireRetransmitLocked()

	var ep *epoch.Epoch
	switch {
	case h.Epoch == l.read.Number():
		ep = l.read
	case h.Type == ContentHandshake && l.retransmit != nil && h.Epoch == l.retransmit.Number():
		ep = l.retransmit
	}
	if ep == nil {
		l.mu.Unlock()
		l.logDiscard(log.DiscardUnknownEpoch, &h, HeaderSize+len(body))
		return 0, false, nil
	}

	window := ep.ReplayWindow()
	if window.ShouldDiscard(h.Sequence) {
		l.mu.Unlock()
		l.logDiscard(log.DiscardReplay, &h, HeaderSize+len(body))
		return 0, false, nil
	}

	c := ep.Cipher()
	plainLen := len(body) - c.Overhead()
	if plainLen < 0 {
		l.mu.Unlock()
		l.logDiscard(log.DiscardAuthentication, &h, HeaderSize+len(body))
		return 0, false, nil
	}
	plaintext, err := c.Open(h.RecordNumber(), additionalData(h, plainLen), body)
	if err != nil {
		l.mu.Unlock()
		l.logDiscard(log.DiscardAuthentication, &h, HeaderSize+len(body))
		return 0, false, nil
	}
	if len(plaintext) > MaxPlaintextLength {
		l.mu.Unlock()
		return 0, false, alert.NewFatal(alert.RecordOverflow,
			fmt.Errorf("plaintext %d > %d", len(plaintext), MaxPlaintextLength))
	}
	// Cannot fail: ShouldDiscard rejected out-of-range sequences.
	_ = window.ReportAuthenticated(h.Sequence)

	superseded := ep != l.read
	inHandshake := l.inHandshake
	hook := l.hook
	l.mu.Unlock()

	l.logRecord(log.DirectionIn, h, len(plaintext))

	switch h.Type {
	case ContentAlert:
		return 0, false, l.handleAlert(plaintext)

	case ContentChangeCipherSpec:
		l.handleChangeCipherSpec(plaintext)
		return 0, false, nil

	case ContentHandshake:
		if !inHandshake || superseded {
			if hook != nil {
				hook.ReceivedHandshakeRecord(h.Epoch, plaintext)
			}
			return 0, false, nil
		}

	case ContentApplicationData:
		if inHandshake {
			l.logDiscard(log.DiscardUnexpected, &h, HeaderSize+len(body))
			return 0, false, nil
		}
	}

	if len(plaintext) > len(buf) {
		return 0, false, fmt.Errorf("%w: %d > %d", ErrBufferTooSmall, len(plaintext), len(buf))
	}
	return copy(buf, plaintext), true, nil
}

func (l *Layer) handleAlert(plaintext []byte) error {
	a, err := alert.Unmarshal(plaintext)
	if err != nil {
		return alert.NewFatal(alert.DecodeError, err)
	}
	l.logAlert(log.DirectionIn, a)

	if a.Level == alert.LevelFatal {
		l.shutdown(false, a, "received "+a.Description.String())
		return &alert.FatalError{Description: a.Description, Received: true}
	}
	if a.Description == alert.CloseNotify {
		l.shutdown(true, alert.Alert{Level: alert.LevelWarning, Description: alert.CloseNotify}, "peer closed")
		return transport.ErrClosed
	}
	return nil
}

func (l *Layer) handleChangeCipherSpec(plaintext []byte) {
	if len(plaintext) != 1 || plaintext[0] != 1 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil || l.read == l.pending {
		return
	}
	old := l.read.Number()
	l.read = l.pending
	l.logState(log.StateEntityReadEpoch, strconv.Itoa(int(old)), strconv.Itoa(int(l.read.Number())), "change_cipher_spec")
}

// Send protects buf as one record. While in the handshake, or while
// resending the final flight, buf must hold handshake fragments; sending
// a finished message implicitly sends change_cipher_spec and switches the
// write epoch.
func (l *Layer) Send(buf []byte) error {
	if l.closed.Load() {
		return transport.ErrClosed
	}
	if limit := l.SendLimit(); len(buf) > limit {
		return fmt.Errorf("%w: %d > %d", ErrRecordTooLarge, len(buf), limit)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ct := ContentApplicationData
	resending := l.retransmit != nil && l.write == l.retransmit
	if l.inHandshake || resending {
		ct = ContentHandshake
		if len(buf) > 0 && handshake.MessageType(buf[0]) == handshake.TypeFinished {
			next := l.pending
			if !l.inHandshake {
				next = l.current
			}
			if next == nil {
				return fmt.Errorf("%w: finished without pending epoch", ErrHandshakeState)
			}
			if l.write != next {
				if err := l.sendRecordLocked(ContentChangeCipherSpec, []byte{1}); err != nil {
					return err
				}
				l.setWriteEpochLocked(next, "change_cipher_spec")
			}
		}
	}
	return l.sendRecordLocked(ct, buf)
}

func (l *Layer) sendRecordLocked(ct ContentType, payload []byte) error {
	ep := l.write
	seq, err := ep.AllocateSequenceNumber()
	if err != nil {
		return alert.NewFatal(alert.InternalError, err)
	}

	h := Header{Type: ct, Version: VersionDTLS12, Epoch: ep.Number(), Sequence: seq}
	sealed, err := ep.Cipher().Seal(h.RecordNumber(), additionalData(h, len(payload)), payload)
	if err != nil {
		return fmt.Errorf("seal record: %w", err)
	}
	h.Length = uint16(len(sealed))

	out := h.Append(make([]byte, 0, HeaderSize+len(sealed)))
	out = append(out, sealed...)
	if err := l.t.Send(out); err != nil {
		return err
	}

	l.logRecord(log.DirectionOut, h, len(payload))
	l.logDatagram(log.DirectionOut, out)
	return nil
}

func (l *Layer) setWriteEpochLocked(ep *epoch.Epoch, reason string) {
	if l.write == ep {
		return
	}
	old := l.write.Number()
	l.write = ep
	l.logState(log.StateEntityWriteEpoch, strconv.Itoa(int(old)), strconv.Itoa(int(ep.Number())), reason)
}

func (l *Layer) expireRetransmitLocked() {
	if l.retransmit != nil && !l.now().Before(l.retransmitExpiry) {
		if l.write == l.retransmit {
			l.write = l.current
		}
		l.retransmit = nil
		l.hook = nil
	}
}

// Fail sends a fatal alert if possible and closes the layer. Only the first
// call has an effect.
func (l *Layer) Fail(desc alert.Description) {
	l.shutdown(true, alert.Alert{Level: alert.LevelFatal, Description: desc}, "failed: "+desc.String())
}

// Close sends close_notify and closes the transport. Safe to call more than
// once.
func (l *Layer) Close() error {
	return l.shutdown(true, alert.Alert{Level: alert.LevelWarning, Description: alert.CloseNotify}, "closed")
}

// shutdown runs once for the layer's lifetime. A fatal a marks the layer
// failed; with notify it is also sent to the peer.
func (l *Layer) shutdown(notify bool, a alert.Alert, reason string) error {
	l.closeOnce.Do(func() {
		if a.Level == alert.LevelFatal {
			l.failed.Store(true)
			if notify && l.logger != nil {
				l.logger.Warn("record layer failed", "conn_id", l.id, "alert", a.Description.String())
			}
		}
		if notify {
			l.mu.Lock()
			if err := l.sendRecordLocked(ContentAlert, a.Marshal()); err == nil {
				l.logAlert(log.DirectionOut, a)
			}
			l.mu.Unlock()
		}
		l.closed.Store(true)
		l.closeErr = l.t.Close()
		l.logState(log.StateEntityConnection, "", "closed", reason)
	})
	return l.closeErr
}

func (l *Layer) emit(ev log.Event) {
	ev.Timestamp = time.Now()
	ev.ConnectionID = l.id
	ev.LocalRole = l.role
	ev.RemoteAddr = l.remote
	l.plog.Log(ev)
}

func (l *Layer) logDatagram(dir log.Direction, data []byte) {
	ev := &log.DatagramEvent{Size: len(data)}
	if len(data) > maxLoggedBytes {
		ev.Data = append([]byte(nil), data[:maxLoggedBytes]...)
		ev.Truncated = true
	} else {
		ev.Data = append([]byte(nil), data...)
	}
	l.emit(log.Event{Direction: dir, Layer: log.LayerDatagram, Category: log.CategoryMessage, Datagram: ev})
}

func (l *Layer) logRecord(dir log.Direction, h Header, length int) {
	l.emit(log.Event{
		Direction: dir,
		Layer:     log.LayerRecord,
		Category:  log.CategoryMessage,
		Record: &log.RecordEvent{
			ContentType: uint8(h.Type),
			Epoch:       h.Epoch,
			Sequence:    h.Sequence,
			Length:      length,
		},
	})
}

func (l *Layer) logDiscard(reason log.DiscardReason, h *Header, size int) {
	ev := &log.DiscardEvent{Reason: reason, Size: size}
	if h != nil {
		e, s := h.Epoch, h.Sequence
		ev.Epoch, ev.Sequence = &e, &s
	}
	l.emit(log.Event{Direction: log.DirectionIn, Layer: log.LayerRecord, Category: log.CategoryDiscard, Discard: ev})
}

func (l *Layer) logAlert(dir log.Direction, a alert.Alert) {
	l.emit(log.Event{
		Direction: dir,
		Layer:     log.LayerRecord,
		Category:  log.CategoryAlert,
		Alert:     &log.AlertEvent{Level: a.Level, Description: a.Description},
	})
}

func (l *Layer) logState(entity log.StateEntity, from, to, reason string) {
	l.emit(log.Event{
		Layer:    log.LayerRecord,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
	if l.logger != nil {
		l.logger.Debug("record layer state", "conn_id", l.id, "entity", entity.String(),
			"from", from, "to", to, "reason", reason)
	}
}

// Compile-time interface satisfaction check.
var _ transport.RecordLayer = (*Layer)(nil)
