// Package debug provides trace logging and timing utilities for the
// voice-allocation engine's hot path.
package debug

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
	// LogLevelFatal is for fatal errors that should terminate the process.
	LogLevelFatal
	// LogLevelOff disables all logging.
	LogLevelOff
)

// String returns the string representation of the log level.
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
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger provides structured, leveled logging. A Manager holds one
// *Logger (set via Manager.SetLogger) rather than reaching for a
// package-level singleton, so a host embedding multiple managers can
// give each its own prefix and output.
type Logger struct {
	mu          sync.Mutex
	output      io.Writer
	level       LogLevel
	prefix      string
	flags       int
	enabled     bool
	includeTime bool
	includeLine bool
}

// Flags for logger output formatting.
const (
	FlagTime     = 1 << iota // Include timestamp
	FlagShortFile            // Include short file name and line number
	FlagLongFile             // Include full file path and line number
	FlagLevel                // Include log level
	FlagPrefix               // Include prefix
)

// DefaultFlags are the default formatting flags.
const DefaultFlags = FlagTime | FlagShortFile | FlagLevel | FlagPrefix

// New creates a new logger instance.
func New(output io.Writer, prefix string, flags int) *Logger {
	return &Logger{
		output:      output,
		prefix:      prefix,
		flags:       flags,
		level:       LogLevelInfo,
		enabled:     true,
		includeTime: flags&FlagTime != 0,
		includeLine: flags&(FlagShortFile|FlagLongFile) != 0,
	}
}

// SetOutput sets the output destination for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetPrefix sets the logger prefix.
func (l *Logger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

// SetFlags sets the output formatting flags.
func (l *Logger) SetFlags(flags int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flags = flags
	l.includeTime = flags&FlagTime != 0
	l.includeLine = flags&(FlagShortFile|FlagLongFile) != 0
}

// SetEnabled enables or disables the logger.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// IsEnabled returns whether the logger is enabled.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// log writes a log message at the specified level.
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.level {
		return
	}

	var sb strings.Builder

	if l.flags&FlagTime != 0 {
		sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000 "))
	}

	if l.flags&FlagLevel != 0 {
		sb.WriteString(fmt.Sprintf("[%s] ", level.String()))
	}

	if l.flags&FlagPrefix != 0 && l.prefix != "" {
		sb.WriteString(fmt.Sprintf("[%s] ", l.prefix))
	}

	if l.flags&(FlagShortFile|FlagLongFile) != 0 {
		_, file, line, ok := runtime.Caller(2) // Skip 2 frames: log() and Debug/Info/etc
		if ok {
			if l.flags&FlagShortFile != 0 {
				file = filepath.Base(file)
			}
			sb.WriteString(fmt.Sprintf("%s:%d: ", file, line))
		}
	}

	msg := fmt.Sprintf(format, args...)
	sb.WriteString(msg)

	if !strings.HasSuffix(msg, "\n") {
		sb.WriteString("\n")
	}

	l.output.Write([]byte(sb.String()))
}

// Debug logs a debug message. This is the only level Manager uses on
// its own hot path (voice placement, steals, co-steal sweeps, voice ends).
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

// Fatal logs a fatal error message and panics.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LogLevelFatal, format, args...)
	panic(fmt.Sprintf(format, args...))
}
