package observability

import (
	"context"
	"log/slog"
)

type slogLogger struct{ l *slog.Logger }

// NewSlogLogger adapts a *slog.Logger. A nil logger uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s slogLogger) With(fields ...Field) Logger {
	return slogLogger{l: s.l.With(attrs(fields)...)}
}

func (s slogLogger) log(level slog.Level, msg string, fields []Field) {
	s.l.Log(context.Background(), level, msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key(), f.Value()))
	}
	return out
}

// RecordingLogger keeps every entry in memory. Tests use it to assert on
// warnings.
type RecordingLogger struct {
	Entries *[]Entry
	fields  []Field
}

type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{Entries: new([]Entry)}
}

func (r *RecordingLogger) Debug(msg string, fields ...Field) { r.add("debug", msg, fields) }
func (r *RecordingLogger) Info(msg string, fields ...Field)  { r.add("info", msg, fields) }
func (r *RecordingLogger) Warn(msg string, fields ...Field)  { r.add("warn", msg, fields) }
func (r *RecordingLogger) Error(msg string, fields ...Field) { r.add("error", msg, fields) }

func (r *RecordingLogger) With(fields ...Field) Logger {
	merged := append(append([]Field(nil), r.fields...), fields...)
	return &RecordingLogger{Entries: r.Entries, fields: merged}
}

func (r *RecordingLogger) add(level, msg string, fields []Field) {
	e := Entry{Level: level, Msg: msg, Fields: make(map[string]interface{})}
	for _, f := range r.fields {
		e.Fields[f.Key()] = f.Value()
	}
	for _, f := range fields {
		e.Fields[f.Key()] = f.Value()
	}
	*r.Entries = append(*r.Entries, e)
}

// Count returns the number of entries logged at level.
func (r *RecordingLogger) Count(level string) int {
	n := 0
	for _, e := range *r.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
