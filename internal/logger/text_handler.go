package logger

import (
	"io"
	"log/slog"
	"time"
)

// consoleTimeFormat is the timestamp layout for console output
const consoleTimeFormat = "02.01.2006 15:04:05"

// newTextHandler creates the human-readable console handler. Timestamps are
// rendered in tz and the custom trace level is printed as TRACE.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	if tz == nil {
		tz = time.Local
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.In(tz).Format(consoleTimeFormat))
				}
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					return slog.String(slog.LevelKey, levelName(lvl))
				}
			}
			return a
		},
	})
}

// levelName renders a slog level, including the trace level below debug
func levelName(lvl slog.Level) string {
	if lvl <= traceLevelValue {
		return "TRACE"
	}
	return lvl.String()
}
