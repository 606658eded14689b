package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/log"
)

func runFilterEvents(t *testing.T, events []log.Event, opts FilterOptions) ([]log.Event, string) {
	t.Helper()
	path := createTestLogFile(t, events)
	opts.Output = filepath.Join(t.TempDir(), "filtered"+log.FileExtension)

	var buf bytes.Buffer
	if err := RunFilter(path, opts, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	return readEvents(t, opts.Output), buf.String()
}

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	got, summary := runFilterEvents(t, []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1"},
		{Timestamp: ts, ConnectionID: "conn-2"},
		{Timestamp: ts, ConnectionID: "conn-1"},
	}, FilterOptions{ConnID: "conn-1"})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.ConnectionID != "conn-1" {
			t.Errorf("expected conn-1, got %s", e.ConnectionID)
		}
	}
	if !strings.HasPrefix(summary, "Filtered 2 events to ") {
		t.Errorf("unexpected summary: %s", summary)
	}
}

func TestFilterByRemoteAddr(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	got, _ := runFilterEvents(t, []log.Event{
		{Timestamp: ts, RemoteAddr: "10.0.0.1:4433"},
		{Timestamp: ts, RemoteAddr: "10.0.0.2:4433"},
	}, FilterOptions{RemoteAddr: "10.0.0.2:4433"})

	if len(got) != 1 || got[0].RemoteAddr != "10.0.0.2:4433" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	got, _ := runFilterEvents(t, []log.Event{
		{Timestamp: base},
		{Timestamp: base.Add(1 * time.Minute)},
		{Timestamp: base.Add(2 * time.Minute)},
		{Timestamp: base.Add(3 * time.Minute)},
	}, FilterOptions{
		TimeStart: base.Add(1 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(3 * time.Minute).Format(time.RFC3339),
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("first event at %s", got[0].Timestamp)
	}
}

func TestFilterCommandByLayerAndCategory(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	got, _ := runFilterEvents(t, []log.Event{
		{Timestamp: ts, Layer: log.LayerRecord, Category: log.CategoryDiscard, Discard: &log.DiscardEvent{}},
		{Timestamp: ts, Layer: log.LayerRecord, Category: log.CategoryMessage, Record: &log.RecordEvent{}},
		{Timestamp: ts, Layer: log.LayerDatagram, Category: log.CategoryMessage, Datagram: &log.DatagramEvent{}},
	}, FilterOptions{Layer: "record", Category: "discard"})

	if len(got) != 1 || got[0].Discard == nil {
		t.Errorf("expected the discard event only, got %+v", got)
	}
}

func TestFilterByRole(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	got, _ := runFilterEvents(t, []log.Event{
		{Timestamp: ts, ConnectionID: "a", LocalRole: log.RoleClient},
		{Timestamp: ts, ConnectionID: "b", LocalRole: log.RoleServer},
		{Timestamp: ts, ConnectionID: "c", LocalRole: log.RoleServer},
	}, FilterOptions{Role: "server"})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.LocalRole != log.RoleServer {
			t.Errorf("event %s logged by %s", e.ConnectionID, e.LocalRole)
		}
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "out"+log.FileExtension)

	tests := []struct {
		name string
		opts FilterOptions
		want string
	}{
		{"TimeStart", FilterOptions{TimeStart: "yesterday"}, "invalid time-start"},
		{"TimeEnd", FilterOptions{TimeEnd: "tomorrow"}, "invalid time-end"},
		{"Layer", FilterOptions{Layer: "wire"}, "invalid layer"},
		{"Direction", FilterOptions{Direction: "up"}, "invalid direction"},
		{"Category", FilterOptions{Category: "control"}, "invalid category"},
		{"Role", FilterOptions{Role: "peer"}, "invalid role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = out
			var buf bytes.Buffer
			err := RunFilter(path, tt.opts, &buf)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("RunFilter error = %v, want %q", err, tt.want)
			}
		})
	}
}
