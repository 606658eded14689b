// Package transport provides the datagram transport capability the record
// layer runs on.
//
// The transport layer handles:
//   - Size limits derived from a fixed MTU
//   - Blocking receive with a timeout that is distinguishable from failure
//   - Atomic, never-fragmenting send
//   - Idempotent close that unblocks a concurrent receive
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│     Handshake / App Data       │
//	├────────────────────────────────┤
//	│  Record Layer (epochs, replay) │
//	├────────────────────────────────┤
//	│   Datagram (this package)      │
//	├────────────────────────────────┤
//	│      UDP  (or in-memory)       │
//	└────────────────────────────────┘
//
// # Size Limits
//
// For a configured MTU:
//
//	receive limit = MTU - 28   (20 B minimum IP header + 8 B UDP header)
//	send limit    = MTU - 84   (additionally 56 B of IP option growth)
//
// Send refuses anything over the send limit instead of relying on IP
// fragmentation, which would silently drop oversized packets on many paths.
//
// # Adapter
//
// Adapter wraps a RecordLayer (which speaks the same contract but encrypts,
// decrypts and filters replays) and guarantees that any failure tears the
// record layer down exactly once before a single consistently typed error
// reaches the caller. Timeouts are not failures.
//
// # Concurrency
//
// One goroutine may Send while another Receives. Close may be called from any
// goroutine; a Receive blocked at that time returns ErrClosed.
package transport
