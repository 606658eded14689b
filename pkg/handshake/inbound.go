package handshake

import (
	"bytes"

	"golang.org/x/crypto/cryptobyte"
)

// DefaultMaxReceiveAhead is how many messages beyond the next expected one
// are buffered.
const DefaultMaxReceiveAhead = 16

// DefaultMaxMessageLength bounds the length a fragment header may announce.
// Fragments of longer messages are dropped before any buffer is allocated.
const DefaultMaxMessageLength = 64 << 10

// Inbound sequences incoming handshake messages.
// An Inbound is not safe for concurrent use.
type Inbound struct {
	next      int
	maxAhead  int
	maxLength int

	current  map[int]*Reassembler
	previous map[int]*Reassembler
}

// NewInbound creates an inbound sequencer expecting message_seq 0.
// A maxAhead of 0 selects DefaultMaxReceiveAhead and a maxLength of 0
// selects DefaultMaxMessageLength.
func NewInbound(maxAhead, maxLength int) *Inbound {
	if maxAhead <= 0 {
		maxAhead = DefaultMaxReceiveAhead
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &Inbound{
		maxAhead:  maxAhead,
		maxLength: maxLength,
		current:   make(map[int]*Reassembler),
	}
}

// NextSequence returns the message_seq of the next message to be delivered.
func (in *Inbound) NextSequence() int {
	return in.next
}

// Process feeds every fragment of a handshake record into the matching
// reassembler. Parsing stops silently at the first malformed fragment.
//
// It returns true when the fragments completed a full retransmission of the
// previous flight, meaning the peer never saw our response to it.
func (in *Inbound) Process(record []byte) bool {
	s := cryptobyte.String(record)
	checkPrevious := false

	for !s.Empty() {
		h, payload, err := ReadFragment(&s)
		if err != nil {
			break
		}

		seq := int(h.Sequence)
		switch {
		case int(h.Length) > in.maxLength:
			// Larger than any message we accept.
		case seq >= in.next+in.maxAhead:
			// Too far ahead to buffer.
		case seq >= in.next:
			r, ok := in.current[seq]
			if !ok {
				r = NewReassembler(h.Type, int(h.Length))
				in.current[seq] = r
			}
			r.ContributeFragment(h.Type, int(h.Length), payload, int(h.FragmentOffset))
		default:
			if r, ok := in.previous[seq]; ok {
				r.ContributeFragment(h.Type, int(h.Length), payload, int(h.FragmentOffset))
				checkPrevious = true
			}
		}
	}

	if checkPrevious && allComplete(in.previous) {
		resetAll(in.previous)
		return true
	}
	return false
}

// Next returns the next in-order message once it is complete.
func (in *Inbound) Next() (Message, bool) {
	r, ok := in.current[in.next]
	if !ok {
		return Message{}, false
	}
	body, ok := r.Body()
	if !ok {
		return Message{}, false
	}

	msg := Message{
		Type:     r.MessageType(),
		Sequence: uint16(in.next),
		Body:     bytes.Clone(body),
	}
	in.next++
	return msg, true
}

// FinishFlight is called when we start sending our next flight. Messages
// delivered so far become the previous flight and are watched for
// retransmission.
func (in *Inbound) FinishFlight() {
	delivered := make(map[int]*Reassembler)
	for seq, r := range in.current {
		if seq < in.next {
			r.Reset()
			delivered[seq] = r
			delete(in.current, seq)
		}
	}
	if len(delivered) > 0 {
		in.previous = delivered
	}
}

// Retire stops buffering new messages. Only retransmissions of the previous
// flight are still tracked. Used once the handshake has completed.
func (in *Inbound) Retire() {
	in.FinishFlight()
	in.maxAhead = 0
	clear(in.current)
}

func allComplete(m map[int]*Reassembler) bool {
	if len(m) == 0 {
		return false
	}
	for _, r := range m {
		if !r.Complete() {
			return false
		}
	}
	return true
}

func resetAll(m map[int]*Reassembler) {
	for _, r := range m {
		r.Reset()
	}
}
