package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Logger provides structured logging tagged with the service name and version.
type Logger struct {
	serviceName string
	version     string

	base *logrus.Logger
}

// New creates a new logger writing to stdout at the level named by LOG_LEVEL
// (info when unset or invalid).
func New(serviceName, version string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		DisableColors:   !isTerminal(os.Stdout),
	})

	l := &Logger{
		serviceName: serviceName,
		version:     version,
		base:        base,
	}
	l.SetLevel(os.Getenv("LOG_LEVEL"))
	return l
}

// NewWithOutput creates a logger that writes JSON lines to w. Used by tests and
// by non-interactive runs that ship logs elsewhere.
func NewWithOutput(serviceName, version string, w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	base.SetLevel(logrus.DebugLevel)
	return &Logger{
		serviceName: serviceName,
		version:     version,
		base:        base,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithOutput("", "", io.Discard)
}

// isTerminal checks if we're outputting to a terminal (for color support)
func isTerminal(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// SetLevel changes the minimum level. Unknown names fall back to info.
func (l *Logger) SetLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.base.SetLevel(lvl)
}

func (l *Logger) entry(fields map[string]string) *logrus.Entry {
	e := l.base.WithField("service", l.serviceName)
	if l.version != "" {
		e = e.WithField("version", l.version)
	}
	for k, v := range fields {
		e = e.WithField(k, v)
	}
	return e
}

func (l *Logger) log(level logrus.Level, message string, fields map[string]string) {
	l.entry(fields).Log(level, message)
}

// Debug logs a debug message with optional formatting
func (l *Logger) Debug(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log(logrus.DebugLevel, message, nil)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(logrus.DebugLevel, fmt.Sprintf(format, args...), nil)
}

// Info logs an info message with optional formatting
func (l *Logger) Info(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log(logrus.InfoLevel, message, nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Warn logs a warning message with optional formatting
func (l *Logger) Warn(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log(logrus.WarnLevel, message, nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(logrus.WarnLevel, fmt.Sprintf(format, args...), nil)
}

// Error logs an error message with optional formatting
func (l *Logger) Error(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log(logrus.ErrorLevel, message, nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string) {
	l.entry(nil).Fatal(message)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry(nil).Fatal(fmt.Sprintf(format, args...))
}

// WithFields logs a message with additional fields
func (l *Logger) WithFields(fields map[string]string) *LogContext {
	return &LogContext{
		logger: l,
		fields: fields,
	}
}

// LogContext provides field-based logging
type LogContext struct {
	logger *Logger
	fields map[string]string
}

func (c *LogContext) Debug(message string) {
	c.logger.log(logrus.DebugLevel, message, c.fields)
}

func (c *LogContext) Info(message string) {
	c.logger.log(logrus.InfoLevel, message, c.fields)
}

func (c *LogContext) Warn(message string) {
	c.logger.log(logrus.WarnLevel, message, c.fields)
}

func (c *LogContext) Error(message string) {
	c.logger.log(logrus.ErrorLevel, message, c.fields)
}
