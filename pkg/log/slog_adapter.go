package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter mirrors protocol events into an slog.Logger. Errors are
// logged at Warn level, everything else at Debug.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event as one "protocol" record. Attributes are only
// built when the level is enabled.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	if event.Error != nil {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs,
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.Node != 0 {
		attrs = append(attrs, slog.Uint64("node", uint64(event.Node)))
	}

	switch {
	case event.Frame != nil:
		attrs = event.Frame.appendAttrs(attrs)
	case event.Message != nil:
		attrs = event.Message.appendAttrs(attrs)
	case event.StateChange != nil:
		attrs = event.StateChange.appendAttrs(attrs)
	case event.Update != nil:
		attrs = event.Update.appendAttrs(attrs)
	case event.Error != nil:
		attrs = event.Error.appendAttrs(attrs)
	}
	a.logger.LogAttrs(ctx, level, "protocol", attrs...)
}

func (f *FrameEvent) appendAttrs(attrs []slog.Attr) []slog.Attr {
	return append(attrs, slog.Int("frame_size", f.Size), slog.Bool("truncated", f.Truncated))
}

func (m *MessageEvent) appendAttrs(attrs []slog.Attr) []slog.Attr {
	attrs = append(attrs,
		slog.Uint64("msg_id", uint64(m.MessageID)),
		slog.String("msg_type", m.Type.String()),
		slog.String("object", fmt.Sprintf("0x%04X:%02X", m.Index, m.SubIndex)),
	)
	if m.Operation != nil {
		attrs = append(attrs, slog.String("operation", m.Operation.String()))
	}
	if m.Abort != nil {
		attrs = append(attrs, slog.String("abort", m.Abort.String()))
	}
	if len(m.Data) > 0 {
		attrs = append(attrs, slog.String("data", fmt.Sprintf("% x", m.Data)))
	}
	if m.ProcessingTime != nil {
		attrs = append(attrs, slog.Duration("processing_time", *m.ProcessingTime))
	}
	return attrs
}

func (s *StateChangeEvent) appendAttrs(attrs []slog.Attr) []slog.Attr {
	attrs = append(attrs,
		slog.String("entity", s.Entity.String()),
		slog.String("old_state", s.OldState),
		slog.String("new_state", s.NewState),
	)
	if s.Reason != "" {
		attrs = append(attrs, slog.String("reason", s.Reason))
	}
	return attrs
}

func (u *UpdateEvent) appendAttrs(attrs []slog.Attr) []slog.Attr {
	attrs = append(attrs, slog.String("phase", u.Phase))
	if u.RunID != "" {
		attrs = append(attrs, slog.String("run_id", u.RunID))
	}
	if u.Image != 0 {
		attrs = append(attrs, slog.Uint64("image", uint64(u.Image)))
	}
	if u.BytesTotal > 0 {
		attrs = append(attrs, slog.Int("bytes_sent", u.BytesSent), slog.Int("bytes_total", u.BytesTotal))
	}
	if u.Status != nil {
		attrs = append(attrs, slog.String("status", u.Status.String()))
	}
	return attrs
}

func (e *ErrorEventData) appendAttrs(attrs []slog.Attr) []slog.Attr {
	attrs = append(attrs,
		slog.String("error_layer", e.Layer.String()),
		slog.String("error_msg", e.Message),
	)
	if e.Context != "" {
		attrs = append(attrs, slog.String("error_context", e.Context))
	}
	if e.Code != nil {
		attrs = append(attrs, slog.Int("error_code", *e.Code))
	}
	return attrs
}
