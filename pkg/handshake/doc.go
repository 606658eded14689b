// Package handshake reassembles and fragments handshake messages carried in
// datagram records.
//
// A datagram record holds one or more handshake fragments. Each fragment is
// prefixed by a 12-byte header:
//
//	┌──────┬──────────┬─────────────┬─────────────────┬─────────────────┬──────────┐
//	│ type │  length  │ message_seq │ fragment_offset │ fragment_length │ payload  │
//	│  1B  │    3B    │     2B      │       3B        │       3B        │   ...    │
//	└──────┴──────────┴─────────────┴─────────────────┴─────────────────┴──────────┘
//
// All fields are big-endian. length is the size of the complete message body;
// fragment_offset and fragment_length place this payload inside it.
//
// # Reassembly
//
// A Reassembler owns the body buffer of exactly one message and the list of
// byte ranges still missing. Fragments may arrive in any order, duplicated or
// overlapping. Fragments that do not match the message identity or that run
// past the declared length are ignored rather than treated as fatal, since a
// datagram network may corrupt or misroute them.
//
// Overlapping fragments are not compared: each byte is taken from the first
// fragment that fills it, and later fragments covering it are not checked
// against it. Content consistency is the job of the handshake transcript
// check that follows.
//
// # Sequencing
//
// Inbound keeps one Reassembler per outstanding message_seq, hands out
// messages strictly in sequence order and detects when the peer retransmits
// a flight we already processed, which means our last flight was lost.
package handshake
