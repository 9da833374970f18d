// Package logger provides leveled logging for the service and CLI.
// Output goes to stderr by default, either as plain text lines or as one JSON
// object per line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	}
	return "INFO"
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	}
	return InfoLevel
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
	mu     sync.Mutex
}

var defaultLogger = New(os.Stderr, "info", "text")

// New builds a logger writing to w. format is "text" or "json".
func New(w io.Writer, level, format string) *Logger {
	l := &Logger{level: ParseLevel(level), out: w}
	if strings.ToLower(format) == "json" {
		l.json = true
	} else {
		l.logger = log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	}
	return l
}

// Init replaces the package logger.
func Init(level, format string) {
	defaultLogger = New(os.Stderr, level, format)
}

// SetOutput replaces the package logger with one writing to w (used in tests).
func SetOutput(w io.Writer, level, format string) {
	defaultLogger = New(w, level, format)
}

func (l *Logger) logf(lv Level, format string, args ...any) {
	if lv < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if !l.json {
		_ = l.logger.Output(3, "["+lv.String()+"] "+msg)
		return
	}
	line, err := json.Marshal(struct {
		Time  string `json:"time"`
		Level string `json:"level"`
		Msg   string `json:"msg"`
	}{time.Now().UTC().Format(time.RFC3339Nano), strings.ToLower(lv.String()), msg})
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...any) { defaultLogger.logf(DebugLevel, format, args...) }

// Info logs a message at InfoLevel
func Info(format string, args ...any) { defaultLogger.logf(InfoLevel, format, args...) }

// Warn logs a message at WarnLevel
func Warn(format string, args ...any) { defaultLogger.logf(WarnLevel, format, args...) }

// Error logs a message at ErrorLevel
func Error(format string, args ...any) { defaultLogger.logf(ErrorLevel, format, args...) }
