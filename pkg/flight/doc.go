// Package flight makes handshake flights reliable over an unreliable record
// layer.
//
// A flight is the group of handshake messages one side sends before it waits
// for the peer. The Manager keeps the last outbound flight and resends it
// when:
//
//   - no message arrives within the retransmit timer (1s, doubling to 60s)
//   - the peer retransmits the flight we already answered
//   - after the handshake, the peer retransmits its final flight (delivered
//     through the record layer's retransmit hook)
//
// Resending starts from the write epoch the flight began in. A Finished
// message switches the write epoch again on its way out, so a resent final
// flight carries its ChangeCipherSpec and Finished exactly as the original
// did.
//
// Usage:
//
//	m, _ := flight.NewManager(layer, flight.Config{ConnectionID: layer.ID()})
//	_ = m.SendMessage(handshake.TypeClientHello, hello)
//	msg, err := m.ReceiveMessage()
//	...
//	_ = m.Finish()
package flight
