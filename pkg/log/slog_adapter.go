package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level. Errors and
// alerts are written at Warn.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Datagram != nil:
		attrs = append(attrs,
			slog.Int("datagram_size", event.Datagram.Size),
			slog.Bool("truncated", event.Datagram.Truncated),
		)
	case event.Record != nil:
		attrs = append(attrs,
			slog.Uint64("content_type", uint64(event.Record.ContentType)),
			slog.Uint64("epoch", uint64(event.Record.Epoch)),
			slog.Uint64("seq", event.Record.Sequence),
			slog.Int("length", event.Record.Length),
		)
	case event.Fragment != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Fragment.Type.String()),
			slog.Uint64("msg_seq", uint64(event.Fragment.MessageSeq)),
			slog.Uint64("offset", uint64(event.Fragment.FragmentOffset)),
			slog.Uint64("fragment_length", uint64(event.Fragment.FragmentLength)),
			slog.Uint64("length", uint64(event.Fragment.Length)),
		)
		if event.Fragment.Retransmit {
			attrs = append(attrs, slog.Bool("retransmit", true))
		}
	case event.Discard != nil:
		attrs = append(attrs, slog.String("reason", event.Discard.Reason.String()))
		if event.Discard.Epoch != nil {
			attrs = append(attrs, slog.Uint64("epoch", uint64(*event.Discard.Epoch)))
		}
		if event.Discard.Sequence != nil {
			attrs = append(attrs, slog.Uint64("seq", *event.Discard.Sequence))
		}
	case event.Alert != nil:
		attrs = append(attrs,
			slog.String("alert_level", event.Alert.Level.String()),
			slog.String("alert", event.Alert.Description.String()),
		)
		level = slog.LevelWarn
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
		level = slog.LevelWarn
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
