// Package epoch provides cipher-state generations for the datagram record layer.
//
// An Epoch pairs one cipher state with its own 48-bit sequence-number space
// and its own replay window. A cipher change creates a new Epoch; the old one
// stays alive only long enough to drain in-flight records and to answer
// retransmitted handshake records.
//
// # Cipher States
//
// The Cipher interface is opaque to the rest of the layer. Two
// implementations are provided:
//   - NullCipher: epoch 0, before any keys are agreed
//   - AEADCipher: ChaCha20-Poly1305 or AES-128-GCM with per-record nonces
//
// DeriveCiphers expands a shared secret into a client and a server AEADCipher
// using HKDF-SHA256.
//
// # Sequence Numbers
//
// Sequence numbers start at 0 and are never reused within an epoch. When the
// 48-bit space is exhausted AllocateSequenceNumber fails; the connection must
// rekey (start a new epoch) or terminate.
package epoch
