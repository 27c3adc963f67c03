package log

import (
	"context"
	"log/slog"
)

// SlogAdapter mirrors protocol events into an operational slog logger,
// by default at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter returns an adapter writing to logger at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of a logging at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, a.level) {
		return
	}
	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs,
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	attrs = appendNonEmpty(attrs, "device_id", event.DeviceID)
	attrs = appendNonEmpty(attrs, "service_id", event.ServiceID)

	switch {
	case event.Frame != nil:
		attrs = append(attrs, slog.Int("frame_size", event.Frame.Size), slog.Bool("truncated", event.Frame.Truncated))
	case event.Message != nil:
		attrs = messageAttrs(attrs, event.Message)
	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState),
		)
		attrs = appendNonEmpty(attrs, "reason", sc.Reason)
	case event.ControlMsg != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.ControlMsg.Type.String()))
		if code := event.ControlMsg.CloseCode; code != nil {
			attrs = append(attrs, slog.Int("close_code", *code))
		}
	case event.Error != nil:
		e := event.Error
		attrs = append(attrs, slog.String("error_layer", e.Layer.String()), slog.String("error_msg", e.Message))
		attrs = appendNonEmpty(attrs, "error_context", e.Context)
		if e.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *e.Code))
		}
	}

	a.logger.LogAttrs(ctx, a.level, "protocol", attrs...)
}

func messageAttrs(attrs []slog.Attr, m *MessageEvent) []slog.Attr {
	attrs = append(attrs, slog.Int("msg_id", m.MessageID), slog.String("msg_type", m.Type.String()))
	attrs = appendNonEmpty(attrs, "uri", m.URI)
	if m.Subscription {
		attrs = append(attrs, slog.Bool("subscription", true))
	}
	attrs = appendNonEmpty(attrs, "error", m.ErrorText)
	if m.Latency != nil {
		attrs = append(attrs, slog.Duration("latency", *m.Latency))
	}
	return attrs
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}

var _ Logger = (*SlogAdapter)(nil)
