package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/alert"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerRecord,
		Category:     CategoryMessage,
		LocalRole:    RoleServer,
		RemoteAddr:   "192.168.1.100:4433",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.LocalRole != original.LocalRole {
		t.Errorf("LocalRole: got %v, want %v", decoded.LocalRole, original.LocalRole)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
}

func TestRecordEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerRecord,
		Category:     CategoryMessage,
		Record: &RecordEvent{
			ContentType: 23,
			Epoch:       1,
			Sequence:    1<<48 - 1,
			Length:      512,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Record == nil {
		t.Fatal("Record is nil")
	}
	if *decoded.Record != *original.Record {
		t.Errorf("Record: got %+v, want %+v", *decoded.Record, *original.Record)
	}
}

func TestFragmentEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Direction: DirectionOut,
		Layer:     LayerHandshake,
		Category:  CategoryMessage,
		Fragment: &FragmentEvent{
			Type:           handshake.TypeCertificate,
			MessageSeq:     3,
			Length:         4000,
			FragmentOffset: 1200,
			FragmentLength: 1200,
			Retransmit:     true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Fragment == nil {
		t.Fatal("Fragment is nil")
	}
	if *decoded.Fragment != *original.Fragment {
		t.Errorf("Fragment: got %+v, want %+v", *decoded.Fragment, *original.Fragment)
	}
}

func TestDiscardEventCBORRoundTrip(t *testing.T) {
	epoch := uint16(0)
	seq := uint64(7)

	tests := []struct {
		name    string
		discard *DiscardEvent
	}{
		{"malformed", &DiscardEvent{Reason: DiscardMalformed, Size: 5}},
		{"replay", &DiscardEvent{Reason: DiscardReplay, Epoch: &epoch, Sequence: &seq, Size: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(Event{
				Timestamp: time.Now(),
				Layer:     LayerRecord,
				Category:  CategoryDiscard,
				Discard:   tt.discard,
			})
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if decoded.Discard == nil {
				t.Fatal("Discard is nil")
			}
			if decoded.Discard.Reason != tt.discard.Reason {
				t.Errorf("Reason: got %v, want %v", decoded.Discard.Reason, tt.discard.Reason)
			}
			if (decoded.Discard.Epoch == nil) != (tt.discard.Epoch == nil) {
				t.Fatalf("Epoch presence: got %v, want %v", decoded.Discard.Epoch, tt.discard.Epoch)
			}
			if tt.discard.Epoch != nil && *decoded.Discard.Epoch != *tt.discard.Epoch {
				t.Errorf("Epoch: got %d, want %d", *decoded.Discard.Epoch, *tt.discard.Epoch)
			}
			if tt.discard.Sequence != nil && *decoded.Discard.Sequence != *tt.discard.Sequence {
				t.Errorf("Sequence: got %d, want %d", *decoded.Discard.Sequence, *tt.discard.Sequence)
			}
		})
	}
}

func TestAlertEventCBORRoundTrip(t *testing.T) {
	data, err := EncodeEvent(Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerRecord,
		Category:  CategoryAlert,
		Alert:     &AlertEvent{Level: alert.LevelFatal, Description: alert.BadRecordMAC},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Alert == nil {
		t.Fatal("Alert is nil")
	}
	if decoded.Alert.Level != alert.LevelFatal || decoded.Alert.Description != alert.BadRecordMAC {
		t.Errorf("Alert: got %+v", *decoded.Alert)
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerRecord,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityReadEpoch,
			OldState: "0",
			NewState: "1",
			Reason:   "change_cipher_spec",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if *decoded.StateChange != *original.StateChange {
		t.Errorf("StateChange: got %+v, want %+v", *decoded.StateChange, *original.StateChange)
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	code := int(alert.InternalError)

	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionOut,
		Layer:        LayerRecord,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerRecord,
			Message: "sequence numbers exhausted",
			Code:    &code,
			Context: "Send",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil")
	}
	if decoded.Error.Message != original.Error.Message {
		t.Errorf("Error.Message: got %q, want %q", decoded.Error.Message, original.Error.Message)
	}
	if decoded.Error.Code == nil || *decoded.Error.Code != code {
		t.Errorf("Error.Code: got %v, want %d", decoded.Error.Code, code)
	}
	if decoded.Error.Context != original.Error.Context {
		t.Errorf("Error.Context: got %q, want %q", decoded.Error.Context, original.Error.Context)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	event := Event{
		Timestamp:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ConnectionID: "conn-1",
		Record:       &RecordEvent{ContentType: 22, Epoch: 0, Sequence: 4, Length: 100},
	}

	a, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	b, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding differs between calls")
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := 0; i < 3; i++ {
		if err := enc.Encode(Event{ConnectionID: "c", Record: &RecordEvent{Sequence: uint64(i)}}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i := 0; i < 3; i++ {
		var e Event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if e.Record == nil || e.Record.Sequence != uint64(i) {
			t.Errorf("event %d: got %+v", i, e.Record)
		}
	}
}
