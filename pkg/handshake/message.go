package handshake

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// MessageType is the handshake message type tag.
type MessageType uint8

// Handshake message types.
const (
	TypeHelloRequest       MessageType = 0
	TypeClientHello        MessageType = 1
	TypeServerHello        MessageType = 2
	TypeHelloVerifyRequest MessageType = 3
	TypeNewSessionTicket   MessageType = 4
	TypeCertificate        MessageType = 11
	TypeServerKeyExchange  MessageType = 12
	TypeCertificateRequest MessageType = 13
	TypeServerHelloDone    MessageType = 14
	TypeCertificateVerify  MessageType = 15
	TypeClientKeyExchange  MessageType = 16
	TypeFinished           MessageType = 20
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeHelloRequest:
		return "hello_request"
	case TypeClientHello:
		return "client_hello"
	case TypeServerHello:
		return "server_hello"
	case TypeHelloVerifyRequest:
		return "hello_verify_request"
	case TypeNewSessionTicket:
		return "new_session_ticket"
	case TypeCertificate:
		return "certificate"
	case TypeServerKeyExchange:
		return "server_key_exchange"
	case TypeCertificateRequest:
		return "certificate_request"
	case TypeServerHelloDone:
		return "server_hello_done"
	case TypeCertificateVerify:
		return "certificate_verify"
	case TypeClientKeyExchange:
		return "client_key_exchange"
	case TypeFinished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Wire constants.
const (
	// HeaderSize is the size of a fragment header.
	HeaderSize = 12

	// MaxLength is the largest value of a 24-bit length field.
	MaxLength = 1<<24 - 1
)

// Codec errors.
var (
	ErrFragmentTooSmall = errors.New("fragment size leaves no room for payload")
	ErrMessageTooLarge  = errors.New("message exceeds 24-bit length")
	ErrMalformed        = errors.New("malformed handshake fragment")
)

// Message is a complete handshake message.
type Message struct {
	Type     MessageType
	Sequence uint16
	Body     []byte
}

// FragmentHeader is the header preceding every fragment payload.
type FragmentHeader struct {
	Type           MessageType
	Length         uint32
	Sequence       uint16
	FragmentOffset uint32
	FragmentLength uint32
}

// End returns the offset just past the fragment payload.
func (h FragmentHeader) End() uint32 {
	return h.FragmentOffset + h.FragmentLength
}

// AppendFragment appends an encoded fragment (header and payload) to b.
func AppendFragment(b []byte, h FragmentHeader, payload []byte) []byte {
	bb := cryptobyte.NewBuilder(b)
	bb.AddUint8(uint8(h.Type))
	bb.AddUint24(h.Length)
	bb.AddUint16(h.Sequence)
	bb.AddUint24(h.FragmentOffset)
	bb.AddUint24(uint32(len(payload)))
	bb.AddBytes(payload)
	return bb.BytesOrPanic()
}

// ReadFragment consumes one fragment from s. The returned payload aliases the
// input. It fails on truncated input or a fragment that runs past the
// declared message length.
func ReadFragment(s *cryptobyte.String) (FragmentHeader, []byte, error) {
	var h FragmentHeader
	var msgType uint8
	var payload []byte
	if !s.ReadUint8(&msgType) ||
		!s.ReadUint24(&h.Length) ||
		!s.ReadUint16(&h.Sequence) ||
		!s.ReadUint24(&h.FragmentOffset) ||
		!s.ReadUint24(&h.FragmentLength) ||
		!s.ReadBytes(&payload, int(h.FragmentLength)) {
		return FragmentHeader{}, nil, ErrMalformed
	}
	h.Type = MessageType(msgType)
	if h.End() > h.Length {
		return FragmentHeader{}, nil, fmt.Errorf("%w: fragment [%d,%d) past length %d",
			ErrMalformed, h.FragmentOffset, h.End(), h.Length)
	}
	return h, payload, nil
}

// Fragment splits a message into encoded fragments of at most maxFragment
// bytes each, header included. An empty message yields one empty fragment.
func Fragment(msg Message, maxFragment int) ([][]byte, error) {
	if len(msg.Body) > MaxLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg.Body))
	}
	chunk := maxFragment - HeaderSize
	if chunk <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrFragmentTooSmall, maxFragment)
	}

	h := FragmentHeader{
		Type:     msg.Type,
		Length:   uint32(len(msg.Body)),
		Sequence: msg.Sequence,
	}

	if len(msg.Body) == 0 {
		return [][]byte{AppendFragment(nil, h, nil)}, nil
	}

	fragments := make([][]byte, 0, (len(msg.Body)+chunk-1)/chunk)
	for off := 0; off < len(msg.Body); off += chunk {
		end := min(off+chunk, len(msg.Body))
		h.FragmentOffset = uint32(off)
		h.FragmentLength = uint32(end - off)
		fragments = append(fragments, AppendFragment(make([]byte, 0, HeaderSize+end-off), h, msg.Body[off:end]))
	}
	return fragments, nil
}
