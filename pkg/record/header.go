package record

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// ContentType is the record content type.
type ContentType uint8

// Record content types.
const (
	ContentChangeCipherSpec ContentType = 20
	ContentAlert            ContentType = 21
	ContentHandshake        ContentType = 22
	ContentApplicationData  ContentType = 23
)

// String returns the content type name.
func (c ContentType) String() string {
	switch c {
	case ContentChangeCipherSpec:
		return "change_cipher_spec"
	case ContentAlert:
		return "alert"
	case ContentHandshake:
		return "handshake"
	case ContentApplicationData:
		return "application_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

func (c ContentType) valid() bool {
	return c >= ContentChangeCipherSpec && c <= ContentApplicationData
}

// Wire constants.
const (
	// HeaderSize is the size of a record header.
	HeaderSize = 13

	// MaxPlaintextLength is the largest plaintext a record may carry.
	MaxPlaintextLength = 1 << 14

	// VersionDTLS10 and VersionDTLS12 are the accepted wire versions.
	VersionDTLS10 uint16 = 0xFEFF
	VersionDTLS12 uint16 = 0xFEFD

	// additionalDataSize is the size of the AEAD additional data.
	additionalDataSize = 13
)

// Header errors.
var (
	ErrShortHeader        = errors.New("record header too short")
	ErrShortBody          = errors.New("record body truncated")
	ErrUnknownContentType = errors.New("unknown record content type")
	ErrUnsupportedVersion = errors.New("unsupported record version")
)

// Header is a record header.
//
//	┌──────┬─────────┬───────┬──────────────┬────────┐
//	│ type │ version │ epoch │ sequence_num │ length │
//	│  1B  │   2B    │  2B   │      6B      │   2B   │
//	└──────┴─────────┴───────┴──────────────┴────────┘
type Header struct {
	Type     ContentType
	Version  uint16
	Epoch    uint16
	Sequence uint64
	Length   uint16
}

// RecordNumber returns the epoch and sequence as one 64-bit value.
func (h Header) RecordNumber() uint64 {
	return uint64(h.Epoch)<<48 | h.Sequence&(1<<48-1)
}

// Append appends the encoded header to b.
func (h Header) Append(b []byte) []byte {
	builder := cryptobyte.NewBuilder(b)
	builder.AddUint8(uint8(h.Type))
	builder.AddUint16(h.Version)
	builder.AddUint16(h.Epoch)
	builder.AddUint16(uint16(h.Sequence >> 32))
	builder.AddUint32(uint32(h.Sequence))
	builder.AddUint16(h.Length)
	return builder.BytesOrPanic()
}

// ParseHeader decodes the header at the start of data and returns it with
// the record body. The remainder after the body is returned as rest.
func ParseHeader(data []byte) (h Header, body, rest []byte, err error) {
	s := cryptobyte.String(data)

	var ct uint8
	var seqHigh uint16
	var seqLow uint32
	if !s.ReadUint8(&ct) ||
		!s.ReadUint16(&h.Version) ||
		!s.ReadUint16(&h.Epoch) ||
		!s.ReadUint16(&seqHigh) ||
		!s.ReadUint32(&seqLow) ||
		!s.ReadUint16(&h.Length) {
		return Header{}, nil, nil, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(data))
	}
	h.Type = ContentType(ct)
	h.Sequence = uint64(seqHigh)<<32 | uint64(seqLow)

	if !s.ReadBytes(&body, int(h.Length)) {
		return Header{}, nil, nil, fmt.Errorf("%w: want %d, have %d", ErrShortBody, h.Length, len(s))
	}
	if !h.Type.valid() {
		return h, nil, s, fmt.Errorf("%w: %d", ErrUnknownContentType, ct)
	}
	if h.Version != VersionDTLS12 && h.Version != VersionDTLS10 {
		return h, nil, s, fmt.Errorf("%w: %#04x", ErrUnsupportedVersion, h.Version)
	}
	return h, body, s, nil
}

// additionalData builds the AEAD additional data for a record:
// epoch||sequence, type, version and plaintext length.
func additionalData(h Header, plaintextLength int) []byte {
	b := make([]byte, 0, additionalDataSize)
	builder := cryptobyte.NewFixedBuilder(b)
	builder.AddUint16(h.Epoch)
	builder.AddUint16(uint16(h.Sequence >> 32))
	builder.AddUint32(uint32(h.Sequence))
	builder.AddUint8(uint8(h.Type))
	builder.AddUint16(h.Version)
	builder.AddUint16(uint16(plaintextLength))
	return builder.BytesOrPanic()
}
