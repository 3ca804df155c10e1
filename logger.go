package realtime

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger receives the client's operational events as an event name plus
// structured fields. The repo ships two implementations: the stderr logger
// below and a zap-backed one in internal/logging.
type Logger interface {
	Debug(event string, fields map[string]any)
	Info(event string, fields map[string]any)
	Warn(event string, fields map[string]any)
	Error(event string, fields map[string]any)
}

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelOff
)

// String returns the string representation of a LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to LogLevel, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "OFF":
		return LogLevelOff
	default:
		return LogLevelInfo
	}
}

// StderrLogger is a minimal leveled Logger writing to standard error.
type StderrLogger struct {
	level  LogLevel
	logger *log.Logger
}

// NewLogger creates a stderr logger with the given minimum level.
func NewLogger(level LogLevel) *StderrLogger {
	return &StderrLogger{
		level:  level,
		logger: log.New(os.Stderr, "[realtime] ", log.LstdFlags|log.Lmicroseconds),
	}
}

// NewLoggerFromEnv creates a stderr logger with its level taken from the
// REALTIME_LOG_LEVEL environment variable.
func NewLoggerFromEnv() *StderrLogger {
	return NewLogger(ParseLogLevel(os.Getenv("REALTIME_LOG_LEVEL")))
}

func (l *StderrLogger) Debug(event string, fields map[string]any) {
	l.log(LogLevelDebug, event, fields)
}

func (l *StderrLogger) Info(event string, fields map[string]any) {
	l.log(LogLevelInfo, event, fields)
}

func (l *StderrLogger) Warn(event string, fields map[string]any) {
	l.log(LogLevelWarn, event, fields)
}

func (l *StderrLogger) Error(event string, fields map[string]any) {
	l.log(LogLevelError, event, fields)
}

func (l *StderrLogger) log(level LogLevel, event string, fields map[string]any) {
	if level < l.level {
		return
	}
	var fieldStrs []string
	for k, v := range fields {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", k, v))
	}
	suffix := ""
	if len(fieldStrs) > 0 {
		suffix = " " + strings.Join(fieldStrs, " ")
	}
	l.logger.Printf("[%s] %s%s", level, event, suffix)
}

// nopLogger is used when no Logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, map[string]any) {}
func (nopLogger) Info(string, map[string]any)  {}
func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}
