package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel = levelFromEnv(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))
	})
}

// levelFromEnv resolves the level from the DEBUG and LOG_LEVEL values.
// DEBUG wins when it is truthy.
func levelFromEnv(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	return ParseLevel(level)
}

// ParseLevel converts a level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
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

// SetLevel overrides the level resolved from the environment.
func SetLevel(l LogLevel) {
	initLevel()
	currentLevel = l
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logf(LevelDebug, "[DEBUG] ", format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] ", format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logf(LevelWarn, "[WARN] ", format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logf(LevelError, "[ERROR] ", format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Println is a pass-through to log.Println for messages that should always print
func Println(args ...interface{}) {
	log.Println(args...)
}

func logf(level LogLevel, prefix, format string, args ...interface{}) {
	if GetLevel() <= level {
		log.Printf(prefix+format, args...)
	}
}

// Logger tags every line with a component name, e.g. "[INFO] [decoder] ...".
type Logger struct {
	tag string
}

// For returns a Logger for the named component.
func For(tag string) Logger {
	return Logger{tag: "[" + tag + "] "}
}

// Debug logs a debug message for the component
func (l Logger) Debug(format string, args ...interface{}) {
	logf(LevelDebug, "[DEBUG] "+l.tag, format, args...)
}

// Info logs an info message for the component
func (l Logger) Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] "+l.tag, format, args...)
}

// Warn logs a warning for the component
func (l Logger) Warn(format string, args ...interface{}) {
	logf(LevelWarn, "[WARN] "+l.tag, format, args...)
}

// Error logs an error for the component
func (l Logger) Error(format string, args ...interface{}) {
	logf(LevelError, "[ERROR] "+l.tag, format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
