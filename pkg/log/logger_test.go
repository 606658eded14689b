package log

import (
	"testing"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "test-conn",
		Direction:    DirectionIn,
		Layer:        LayerDatagram,
		Category:     CategoryMessage,
	}
	logger.Log(event)

	event.Datagram = &DatagramEvent{Size: 100, Data: []byte{1, 2, 3}}
	logger.Log(event)

	event.Datagram = nil
	event.Alert = &AlertEvent{Level: alert.LevelFatal, Description: alert.HandshakeFailure}
	logger.Log(event)

	event.Alert = nil
	event.Error = &ErrorEventData{Message: "test error"}
	logger.Log(event)
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}

	l := &recordingLogger{}
	if OrNoop(l) != Logger(l) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}
