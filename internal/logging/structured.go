// Package logging provides structured JSON logging for agent components.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	base   *zap.Logger
	baseMu sync.RWMutex

	atomLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Setup replaces the process-wide sink. Output is one JSON object per line.
func Setup(w io.Writer, level Level) {
	setLevel(level)
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "event"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), atomLvl)

	baseMu.Lock()
	base = zap.New(core)
	baseMu.Unlock()
}

func setLevel(level Level) {
	switch level {
	case LevelDebug:
		atomLvl.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		atomLvl.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atomLvl.SetLevel(zapcore.ErrorLevel)
	default:
		atomLvl.SetLevel(zapcore.InfoLevel)
	}
}

func root() *zap.Logger {
	baseMu.RLock()
	z := base
	baseMu.RUnlock()
	if z == nil {
		Setup(os.Stderr, LevelInfo)
		return root()
	}
	return z
}

// Sync flushes buffered entries.
func Sync() { _ = root().Sync() }

// Logger provides structured logging for one component
type Logger struct {
	component string
	fields    []zap.Field
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{component: component}
}

// With returns a logger that adds key/value to every event
func (l *Logger) With(key string, value any) *Logger {
	fields := make([]zap.Field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	return &Logger{component: l.component, fields: append(fields, zap.Any(key, value))}
}

func (l *Logger) log(level zapcore.Level, event string, extra map[string]any, err error, dur time.Duration) {
	z := root()
	ce := z.Check(level, event)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, len(l.fields)+len(extra)+3)
	fields = append(fields, zap.String("component", l.component))
	fields = append(fields, l.fields...)
	if dur > 0 {
		fields = append(fields, zap.Int64("duration_ms", dur.Milliseconds()))
	}
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	if len(extra) > 0 {
		fields = append(fields, zap.Any("extra", extra))
	}
	ce.Write(fields...)
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	l.log(zapcore.DebugLevel, event, extra, nil, 0)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	l.log(zapcore.InfoLevel, event, extra, nil, 0)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	l.log(zapcore.WarnLevel, event, extra, err, 0)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	l.log(zapcore.ErrorLevel, event, extra, err, 0)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	l.log(zapcore.InfoLevel, event, extra, nil, time.Since(start))
}
