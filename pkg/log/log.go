// Package log provides the structured logging layer used across airsift.
//
// Estimators and pipeline stages log through the Logger interface with
// alternating key/value pairs; the default provider is backed by
// rs/zerolog writing JSON to stderr. Binaries can install their own
// provider (for example a console writer at debug level) with SetProvider.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level controls which messages a provider emits.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// ToLogLevel maps a level name ("debug", "info", "warn", "error") to a
// Level. Unknown names fall back to LevelInfo.
func ToLogLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the leveled, structured logger handed to estimators.
// Keys and values alternate; keys should be strings.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	// With returns a child logger with the given fields attached to every
	// subsequent message.
	With(keysAndValues ...interface{}) Logger
}

// LoggerProvider constructs loggers. A provider fixes the sink and level;
// names distinguish the component emitting each message.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

// NewZerologProvider returns a provider writing JSON records to stderr at
// the given level.
func NewZerologProvider(level Level) LoggerProvider {
	return NewZerologProviderTo(os.Stderr, level)
}

// NewZerologProviderTo returns a provider writing JSON records to w at the
// given level. Tests use this to capture output.
func NewZerologProviderTo(w io.Writer, level Level) LoggerProvider {
	base := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
	return &zerologProvider{base: base}
}

// NewConsoleProvider returns a provider writing human-readable records to
// stderr, intended for interactive CLI use.
func NewConsoleProvider(level Level) LoggerProvider {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	base := zerolog.New(cw).Level(zerologLevel(level)).With().Timestamp().Logger()
	return &zerologProvider{base: base}
}

// zerologLevel translates a Level to the zerolog scale, which starts
// debug at 0 rather than -1.
func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type zerologProvider struct {
	base zerolog.Logger
}

func (p *zerologProvider) GetLogger() Logger {
	return &zerologLogger{l: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: p.base.With().Str(LoggerNameKey, name).Logger()}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	emit(z.l.Debug(), msg, keysAndValues)
}

func (z *zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	emit(z.l.Info(), msg, keysAndValues)
}

func (z *zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	emit(z.l.Warn(), msg, keysAndValues)
}

func (z *zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	emit(z.l.Error(), msg, keysAndValues)
}

func (z *zerologLogger) With(keysAndValues ...interface{}) Logger {
	ctx := z.l.With()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ctx = ctx.Interface(keyAt(keysAndValues, i), keysAndValues[i+1])
	}
	return &zerologLogger{l: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ev = ev.Interface(keyAt(keysAndValues, i), keysAndValues[i+1])
	}
	ev.Msg(msg)
}

func keyAt(kv []interface{}, i int) string {
	if s, ok := kv[i].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", kv[i])
}

var (
	defaultMu       sync.RWMutex
	defaultProvider LoggerProvider
)

// SetProvider installs the module-wide default provider used by
// GetLogger/GetLoggerWithName.
func SetProvider(p LoggerProvider) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultProvider = p
}

func provider() LoggerProvider {
	defaultMu.RLock()
	p := defaultProvider
	defaultMu.RUnlock()
	if p != nil {
		return p
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultProvider == nil {
		defaultProvider = NewZerologProvider(ToLogLevel(os.Getenv("AIRSIFT_LOG_LEVEL")))
	}
	return defaultProvider
}

// GetLogger returns an unnamed logger from the default provider.
func GetLogger() Logger {
	return provider().GetLogger()
}

// GetLoggerWithName returns a named logger from the default provider.
func GetLoggerWithName(name string) Logger {
	return provider().GetLoggerWithName(name)
}
