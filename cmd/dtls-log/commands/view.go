// Package commands implements the dtls-log CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/record"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Role      *log.Role
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{Layer: f.Layer, Direction: f.Direction, Category: f.Category, Role: f.Role}
}

// eventLabel names the payload an event carries.
func eventLabel(event log.Event) string {
	switch {
	case event.Datagram != nil:
		return "Datagram"
	case event.Record != nil:
		return record.ContentType(event.Record.ContentType).String()
	case event.Fragment != nil:
		return event.Fragment.Type.String()
	case event.Discard != nil:
		return "Discard"
	case event.Alert != nil:
		return event.Alert.Description.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [conn:%s] %-6s %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.LocalRole.String(),
		event.Direction.String(), event.Layer.String(), eventLabel(event))

	switch {
	case event.Datagram != nil:
		formatDatagramDetails(w, event.Datagram)
	case event.Record != nil:
		r := event.Record
		fmt.Fprintf(w, "  Epoch: %d  Seq: %d  Length: %d\n", r.Epoch, r.Sequence, r.Length)
	case event.Fragment != nil:
		formatFragmentDetails(w, event.Fragment)
	case event.Discard != nil:
		formatDiscardDetails(w, event.Discard)
	case event.Alert != nil:
		fmt.Fprintf(w, "  Level: %s\n", event.Alert.Level.String())
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.RemoteAddr)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDatagramDetails(w io.Writer, d *log.DatagramEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	if len(d.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(d.Data))
		if d.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatFragmentDetails(w io.Writer, f *log.FragmentEvent) {
	fmt.Fprintf(w, "  MessageSeq: %d  Length: %d\n", f.MessageSeq, f.Length)
	if f.FragmentOffset != 0 || f.FragmentLength != f.Length {
		fmt.Fprintf(w, "  Fragment: [%d,%d)\n", f.FragmentOffset, f.FragmentOffset+f.FragmentLength)
	}
	if f.Retransmit {
		fmt.Fprintln(w, "  Retransmit")
	}
}

func formatDiscardDetails(w io.Writer, d *log.DiscardEvent) {
	fmt.Fprintf(w, "  Reason: %s\n", d.Reason.String())
	if d.Epoch != nil && d.Sequence != nil {
		fmt.Fprintf(w, "  Epoch: %d  Seq: %d\n", *d.Epoch, *d.Sequence)
	}
	if d.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "datagram":
		return log.LayerDatagram, nil
	case "record":
		return log.LayerRecord, nil
	case "handshake":
		return log.LayerHandshake, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be datagram, record, or handshake)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "alert":
		return log.CategoryAlert, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "discard":
		return log.CategoryDiscard, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, alert, state, error, or discard)", s)
	}
}

// ParseRoleFlag parses an endpoint role name (case-insensitive).
func ParseRoleFlag(s string) (log.Role, error) {
	switch strings.ToLower(s) {
	case "client":
		return log.RoleClient, nil
	case "server":
		return log.RoleServer, nil
	default:
		return 0, fmt.Errorf("invalid role: %s (must be client or server)", s)
	}
}

// RunView prints every matching event of a capture file.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
