package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
)

// DefaultLogger is a colored logger implementation using Go's standard log package
// Debug/Verbose/Info -> stdout (no color)
// Warn -> stderr (yellow)
// Error -> stderr (red)
// Fatal -> stderr (bold red)
type DefaultLogger struct {
	stdoutLogger *log.Logger
	stderrLogger *log.Logger
	level        *Level
	prefix       string
	fields       Fields
	useColors    bool
}

// NewDefaultLogger creates a new default logger with colored output
func NewDefaultLogger() *DefaultLogger {
	return NewDefaultLoggerWithWriters(os.Stdout, os.Stderr, isTerminal())
}

// NewDefaultLoggerNoColor creates a new default logger without colored output
func NewDefaultLoggerNoColor() *DefaultLogger {
	return NewDefaultLoggerWithWriters(os.Stdout, os.Stderr, false)
}

// NewDefaultLoggerWithWriters creates a default logger writing to the given
// streams. Handy for capturing output in tests.
func NewDefaultLoggerWithWriters(stdout, stderr io.Writer, useColors bool) *DefaultLogger {
	level := InfoLevel
	return &DefaultLogger{
		stdoutLogger: log.New(stdout, "", log.LstdFlags),
		stderrLogger: log.New(stderr, "", log.LstdFlags),
		level:        &level,
		fields:       make(Fields),
		useColors:    useColors,
	}
}

// isTerminal checks if the logger is running in a terminal that supports colors
func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// SetPrefix sets a short tag printed before every message.
func (d *DefaultLogger) SetPrefix(prefix string) {
	d.prefix = strings.TrimSpace(prefix)
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	allFields := make(Fields)
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", level.String())
	if d.prefix != "" {
		b.WriteString(d.prefix)
		b.WriteString(" : ")
	}
	b.WriteString(msg)

	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}

	// Sorted so output is stable between runs
	if len(allFields) > 0 {
		keys := slices.Sorted(maps.Keys(allFields))
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", k, allFields[k])
		}
		b.WriteByte('}')
	}

	logMsg := b.String()
	if d.useColors {
		switch level {
		case VerboseLevel:
			logMsg = ColorCyan + logMsg + ColorReset
		case WarnLevel:
			logMsg = ColorYellow + logMsg + ColorReset
		case ErrorLevel:
			logMsg = ColorRed + logMsg + ColorReset
		case FatalLevel:
			logMsg = ColorBold + ColorRed + logMsg + ColorReset
		}
	}

	return logMsg
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if disabled.Load() || level < *d.level {
		return
	}

	formattedMsg := d.formatMessage(level, err, msg, fields...)

	switch level {
	case DebugLevel, VerboseLevel, InfoLevel:
		d.stdoutLogger.Println(formattedMsg)
	case WarnLevel, ErrorLevel:
		d.stderrLogger.Println(formattedMsg)
	case FatalLevel:
		d.stderrLogger.Println(formattedMsg)
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Verbose(msg string, fields ...Fields) {
	d.log(VerboseLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

// WithFields returns a child logger. The child shares the parent's level so
// SetLevel on the root affects loggers already handed out to components.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields)
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		stdoutLogger: d.stdoutLogger,
		stderrLogger: d.stderrLogger,
		level:        d.level,
		prefix:       d.prefix,
		fields:       newFields,
		useColors:    d.useColors,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	*d.level = level
}

// NoOpLogger is a logger that does nothing - useful for testing or when logging is disabled
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Verbose(msg string, fields ...Fields)          {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
