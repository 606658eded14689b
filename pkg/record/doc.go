// Package record implements the protected record layer that runs on top of
// a transport.Datagram.
//
// # Record Format
//
//	┌──────┬─────────┬───────┬──────────────┬────────┬───────────────────┐
//	│ type │ version │ epoch │ sequence_num │ length │ protected payload │
//	│  1B  │   2B    │  2B   │      6B      │   2B   │     length B      │
//	└──────┴─────────┴───────┴──────────────┴────────┴───────────────────┘
//
// A datagram may carry several records back to back.
//
// # Epochs
//
// The layer tracks four epoch roles:
//
//	current   the established cipher state
//	pending   installed by InitPendingEpoch, not yet in use
//	read      switched to pending on change_cipher_spec
//	write     switched to pending when a finished message is sent
//
// HandshakeSuccessful promotes pending to current. If a RetransmitHook is
// given, the superseded epoch stays readable for handshake records for
// DefaultRetransmitEpochLifetime so the peer's retransmitted final flight
// can be answered.
//
// # Inbound Filtering
//
// Records with an unknown epoch, a replayed or too old sequence number, or a
// failed authentication check are dropped without error and reported to the
// protocol logger as discard events. A received fatal alert fails the layer;
// close_notify closes it.
package record
