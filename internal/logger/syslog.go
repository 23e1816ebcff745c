package logger

import (
	"context"
	"log/slog"
	"log/syslog"
)

// syslogHandler copies log records to the system log with the matching
// priority. It carries no level gate of its own; the primary handler's
// level decides what gets through the tee.
type syslogHandler struct {
	w     *syslog.Writer
	attrs []slog.Attr
}

func newSyslogHandler() (*syslogHandler, error) {
	w, err := syslog.New(syslog.LOG_NOTICE|syslog.LOG_DAEMON, "krenewd")
	if err != nil {
		return nil, err
	}
	return &syslogHandler{w: w}, nil
}

func (h *syslogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *syslogHandler) Handle(_ context.Context, r slog.Record) error {
	var buf []byte
	buf = append(buf, r.Message...)
	for _, attr := range h.attrs {
		buf = appendPlainAttr(buf, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendPlainAttr(buf, a)
		return true
	})
	msg := string(buf)

	switch {
	case r.Level < slog.LevelInfo:
		return h.w.Debug(msg)
	case r.Level < slog.LevelWarn:
		return h.w.Info(msg)
	case r.Level < slog.LevelError:
		return h.w.Warning(msg)
	default:
		return h.w.Err(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &syslogHandler{
		w:     h.w,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *syslogHandler) WithGroup(string) slog.Handler {
	return h
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
