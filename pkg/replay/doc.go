// Package replay implements the anti-replay window for datagram records.
//
// Each epoch owns one Window. The record layer asks ShouldDiscard before
// spending any effort on decryption, and calls ReportAuthenticated only after
// a record passed full authentication:
//
//	if w.ShouldDiscard(seq) {
//	    return // replayed or too old, drop silently
//	}
//	plaintext, err := cipher.Open(...)
//	if err != nil {
//	    return // forged, drop silently
//	}
//	_ = w.ReportAuthenticated(seq)
//
// # Window
//
// The window is anchored at the highest authenticated sequence number and
// covers the 64 sequence numbers at and below it:
//
//	bit i set  <=>  sequence (latest - i) was authenticated
//
// Anything 64 or more below the anchor is discarded, whether it was ever seen
// or not. This keeps the state at 16 bytes regardless of traffic volume.
//
// Sequence numbers are 48-bit values; anything wider is always rejected.
package replay
