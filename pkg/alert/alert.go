// Package alert defines alert levels, descriptions and the fatal error type
// every layer of the datagram stack reports terminal failures with.
package alert

import (
	"errors"
	"fmt"
)

// Level is the alert level.
type Level uint8

const (
	// LevelWarning is a non-fatal alert.
	LevelWarning Level = 1
	// LevelFatal terminates the connection.
	LevelFatal Level = 2
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Description is the alert description code.
type Description uint8

// Alert descriptions (RFC 5246 section 7.2).
const (
	CloseNotify          Description = 0
	UnexpectedMessage    Description = 10
	BadRecordMAC         Description = 20
	RecordOverflow       Description = 22
	HandshakeFailure     Description = 40
	BadCertificate       Description = 42
	IllegalParameter     Description = 47
	DecodeError          Description = 50
	DecryptError         Description = 51
	ProtocolVersion      Description = 70
	InternalError        Description = 80
	UserCanceled         Description = 90
	NoRenegotiation      Description = 100
	UnsupportedExtension Description = 110
)

var descriptionNames = map[Description]string{
	CloseNotify:          "close_notify",
	UnexpectedMessage:    "unexpected_message",
	BadRecordMAC:         "bad_record_mac",
	RecordOverflow:       "record_overflow",
	HandshakeFailure:     "handshake_failure",
	BadCertificate:       "bad_certificate",
	IllegalParameter:     "illegal_parameter",
	DecodeError:          "decode_error",
	DecryptError:         "decrypt_error",
	ProtocolVersion:      "protocol_version",
	InternalError:        "internal_error",
	UserCanceled:         "user_canceled",
	NoRenegotiation:      "no_renegotiation",
	UnsupportedExtension: "unsupported_extension",
}

// String returns the description name.
func (d Description) String() string {
	if name, ok := descriptionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// Alert is a decoded alert record.
type Alert struct {
	Level       Level
	Description Description
}

// Size is the encoded alert length.
const Size = 2

// ErrMalformed indicates an alert record of the wrong length.
var ErrMalformed = errors.New("malformed alert")

// Marshal encodes the alert.
func (a Alert) Marshal() []byte {
	return []byte{byte(a.Level), byte(a.Description)}
}

// Unmarshal decodes an alert record body.
func Unmarshal(data []byte) (Alert, error) {
	if len(data) != Size {
		return Alert{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	return Alert{Level: Level(data[0]), Description: Description(data[1])}, nil
}

// FatalError is the single failure type the stack surfaces to callers.
// It always carries the alert description to report to the peer.
type FatalError struct {
	// Description is the alert code.
	Description Description

	// Received is true when the peer sent the alert.
	Received bool

	// Cause is the underlying error, if any.
	Cause error
}

// NewFatal creates a locally raised fatal error.
func NewFatal(desc Description, cause error) *FatalError {
	return &FatalError{Description: desc, Cause: cause}
}

// Error implements error.
func (e *FatalError) Error() string {
	origin := "fatal alert"
	if e.Received {
		origin = "received fatal alert"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", origin, e.Description, e.Cause)
	}
	return fmt.Sprintf("%s %s", origin, e.Description)
}

// Unwrap returns the cause.
func (e *FatalError) Unwrap() error {
	return e.Cause
}

// AsFatal extracts a FatalError from an error chain.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
