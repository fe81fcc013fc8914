package middleware

import (
	"context"
	"sync"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/ratelimit"
)

// logEntry is a single record captured by recordingLogger.
type logEntry struct {
	level  string
	msg    string
	fields []observability.Field
}

// recordingLogger captures log records for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{}
}

func (l *recordingLogger) record(level, msg string, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]logEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *recordingLogger) Debug(msg string, fields ...observability.Field) {
	l.record("debug", msg, fields)
}

func (l *recordingLogger) Info(msg string, fields ...observability.Field) {
	l.record("info", msg, fields)
}

func (l *recordingLogger) Warn(msg string, fields ...observability.Field) {
	l.record("warn", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields ...observability.Field) {
	l.record("error", msg, fields)
}

func (l *recordingLogger) Fatal(msg string, fields ...observability.Field) {
	l.record("fatal", msg, fields)
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return l
}

func (l *recordingLogger) WithContext(ctx context.Context) observability.Logger {
	return l
}

func (l *recordingLogger) Sync() error { return nil }

// fieldValue returns the string/integer value of the named field.
func fieldValue(fields []observability.Field, key string) (interface{}, bool) {
	for _, f := range fields {
		if f.Key != key {
			continue
		}
		if f.String != "" {
			return f.String, true
		}
		if f.Interface != nil {
			return f.Interface, true
		}
		return f.Integer, true
	}
	return nil, false
}

// stubLimiter returns a fixed result or error from Allow.
type stubLimiter struct {
	result *ratelimit.Result
	err    error
	calls  int
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubLimiter) AllowN(ctx context.Context, key string, n int64) (*ratelimit.Result, error) {
	return s.Allow(ctx, key)
}

func (s *stubLimiter) Limit() int64 {
	if s.result != nil {
		return s.result.Limit
	}
	return 0
}

func (s *stubLimiter) Reset(ctx context.Context, key string) error { return nil }

func (s *stubLimiter) Close() error { return nil }
