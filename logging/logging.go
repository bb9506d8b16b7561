package logging

import (
	"context"
	"strings"
	"sync/atomic"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Level represents log levels
type Level int

const (
	DebugLevel Level = iota
	// VerboseLevel sits between debug and info. Sift progress (per-IMF
	// summaries) is reported here.
	VerboseLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case VerboseLevel:
		return "VERBOSE"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name into a Level. The second return value is
// false when the name is not recognised.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DebugLevel, true
	case "VERBOSE":
		return VerboseLevel, true
	case "INFO":
		return InfoLevel, true
	case "WARN", "WARNING":
		return WarnLevel, true
	case "ERROR":
		return ErrorLevel, true
	case "FATAL", "CRITICAL":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

// Fields represents structured logging fields
type Fields map[string]any

// Logger defines the interface that the library expects for logging
type Logger interface {
	Debug(msg string, fields ...Fields)
	Verbose(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	Fatal(err error, msg string, fields ...Fields)

	// WithFields returns a logger with preset fields
	WithFields(fields Fields) Logger

	// WithContext returns a logger that can extract fields from context
	WithContext(ctx context.Context) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)
}

type fieldsKey struct{}

// ContextWithFields attaches fields to ctx so that WithContext picks them up.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func fieldsFromContext(ctx context.Context) (Fields, bool) {
	if ctx == nil {
		return nil, false
	}
	fields, ok := ctx.Value(fieldsKey{}).(Fields)
	return fields, ok
}

// loggerBox lets the global logger sit behind an atomic.Pointer whatever its
// concrete type.
type loggerBox struct {
	logger Logger
}

var (
	globalLogger atomic.Pointer[loggerBox]
	disabled     atomic.Bool
	configured   atomic.Bool
)

func init() {
	globalLogger.Store(&loggerBox{logger: NewDefaultLogger()})
}

func current() Logger {
	return globalLogger.Load().logger
}

// SetGlobalLogger sets the global logger instance. A nil logger silences the
// library.
func SetGlobalLogger(logger Logger) {
	configured.Store(true)
	if logger == nil {
		logger = &NoOpLogger{}
	}
	globalLogger.Store(&loggerBox{logger: logger})
}

// GetGlobalLogger returns the current global logger
func GetGlobalLogger() Logger {
	if disabled.Load() {
		return &NoOpLogger{}
	}
	return current()
}

// SetUp installs a default logger with the given prefix and level and
// announces itself at info level.
func SetUp(prefix string, level Level) Logger {
	logger := NewDefaultLogger()
	logger.SetPrefix(prefix)
	logger.SetLevel(level)
	SetGlobalLogger(logger)
	disabled.Store(false)
	logger.Info("EMD logger started", Fields{"level": level.String()})
	return logger
}

// Disable turns off all library logging until Enable is called.
func Disable() {
	current().Info("EMD logging disabled")
	disabled.Store(true)
}

// Enable reverses Disable.
func Enable() {
	disabled.Store(false)
	current().Info("EMD logging enabled")
}

// IsActive reports whether a logger has been configured and is not disabled.
func IsActive() bool {
	if disabled.Load() {
		return false
	}
	if _, ok := current().(*NoOpLogger); ok {
		return false
	}
	return configured.Load()
}

// Package-level logging functions that use the global logger
func Debug(msg string, fields ...Fields) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Verbose(msg string, fields ...Fields) {
	GetGlobalLogger().Verbose(msg, fields...)
}

func Info(msg string, fields ...Fields) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Fields) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(err error, msg string, fields ...Fields) {
	GetGlobalLogger().Error(err, msg, fields...)
}

func Fatal(err error, msg string, fields ...Fields) {
	GetGlobalLogger().Fatal(err, msg, fields...)
}

func WithFields(fields Fields) Logger {
	return GetGlobalLogger().WithFields(fields)
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

func SetLevel(level Level) {
	current().SetLevel(level)
}

// DisableColors globally disables color output for the default logger
func DisableColors() {
	if defaultLogger, ok := current().(*DefaultLogger); ok {
		defaultLogger.useColors = false
	}
}

// EnableColors globally enables color output for the default logger
func EnableColors() {
	if defaultLogger, ok := current().(*DefaultLogger); ok {
		defaultLogger.useColors = true
	}
}
