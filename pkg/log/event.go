package log

import (
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the client or server end.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Datagram    *DatagramEvent    `cbor:"10,keyasint,omitempty"` // Datagram layer
	Record      *RecordEvent      `cbor:"11,keyasint,omitempty"` // Record layer
	Fragment    *FragmentEvent    `cbor:"12,keyasint,omitempty"` // Handshake layer
	Discard     *DiscardEvent     `cbor:"13,keyasint,omitempty"` // Silently dropped input
	Alert       *AlertEvent       `cbor:"14,keyasint,omitempty"` // Alerts sent or received
	StateChange *StateChangeEvent `cbor:"15,keyasint,omitempty"` // Connection/epoch/flight state
	Error       *ErrorEventData   `cbor:"16,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerDatagram is the transport layer (raw datagrams).
	LayerDatagram Layer = 0
	// LayerRecord is the record layer (epochs, protection, replay).
	LayerRecord Layer = 1
	// LayerHandshake is the handshake message layer (fragments, flights).
	LayerHandshake Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerDatagram:
		return "DATAGRAM"
	case LayerRecord:
		return "RECORD"
	case LayerHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a datagram, record or fragment.
	CategoryMessage Category = 0
	// CategoryAlert indicates an alert.
	CategoryAlert Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryDiscard indicates input that was dropped without failing.
	CategoryDiscard Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryAlert:
		return "ALERT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryDiscard:
		return "DISCARD"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which end of the connection logged the event.
type Role uint8

const (
	// RoleClient indicates the handshake initiator.
	RoleClient Role = 0
	// RoleServer indicates the handshake responder.
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent captures a raw datagram at the transport layer.
type DatagramEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw datagram (may be truncated for large datagrams).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// RecordEvent captures a protected record.
type RecordEvent struct {
	// ContentType is the record content type (20..23).
	ContentType uint8 `cbor:"1,keyasint"`

	// Epoch is the record epoch.
	Epoch uint16 `cbor:"2,keyasint"`

	// Sequence is the 48-bit record sequence number.
	Sequence uint64 `cbor:"3,keyasint"`

	// Length is the plaintext length.
	Length int `cbor:"4,keyasint"`
}

// FragmentEvent captures a handshake message fragment.
type FragmentEvent struct {
	Type           handshake.MessageType `cbor:"1,keyasint"`
	MessageSeq     uint16                `cbor:"2,keyasint"`
	Length         uint32                `cbor:"3,keyasint"`
	FragmentOffset uint32                `cbor:"4,keyasint"`
	FragmentLength uint32                `cbor:"5,keyasint"`

	// Retransmit is set for fragments sent as part of a resent flight.
	Retransmit bool `cbor:"6,keyasint,omitempty"`
}

// DiscardEvent captures input the record layer dropped silently.
type DiscardEvent struct {
	// Reason the input was dropped.
	Reason DiscardReason `cbor:"1,keyasint"`

	// Epoch and Sequence of the record, when the header could be parsed.
	Epoch    *uint16 `cbor:"2,keyasint,omitempty"`
	Sequence *uint64 `cbor:"3,keyasint,omitempty"`

	// Size is the number of bytes dropped.
	Size int `cbor:"4,keyasint,omitempty"`
}

// DiscardReason explains why input was dropped.
type DiscardReason uint8

const (
	// DiscardMalformed indicates an unparsable record header.
	DiscardMalformed DiscardReason = 0
	// DiscardUnknownEpoch indicates a record for an epoch with no read state.
	DiscardUnknownEpoch DiscardReason = 1
	// DiscardReplay indicates a duplicate or too old sequence number.
	DiscardReplay DiscardReason = 2
	// DiscardAuthentication indicates a record that failed to decrypt.
	DiscardAuthentication DiscardReason = 3
	// DiscardUnexpected indicates a record of a type not accepted in the
	// current state.
	DiscardUnexpected DiscardReason = 4
)

// String returns the discard reason name.
func (r DiscardReason) String() string {
	switch r {
	case DiscardMalformed:
		return "MALFORMED"
	case DiscardUnknownEpoch:
		return "UNKNOWN_EPOCH"
	case DiscardReplay:
		return "REPLAY"
	case DiscardAuthentication:
		return "AUTHENTICATION"
	case DiscardUnexpected:
		return "UNEXPECTED"
	default:
		return "UNKNOWN"
	}
}

// AlertEvent captures an alert sent or received.
type AlertEvent struct {
	Level       alert.Level       `cbor:"1,keyasint"`
	Description alert.Description `cbor:"2,keyasint"`
}

// StateChangeEvent captures connection, epoch and flight lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityReadEpoch indicates the read epoch changed.
	StateEntityReadEpoch StateEntity = 1
	// StateEntityWriteEpoch indicates the write epoch changed.
	StateEntityWriteEpoch StateEntity = 2
	// StateEntityFlight indicates a flight was sent, resent or completed.
	StateEntityFlight StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityReadEpoch:
		return "READ_EPOCH"
	case StateEntityWriteEpoch:
		return "WRITE_EPOCH"
	case StateEntityFlight:
		return "FLIGHT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the alert description (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
