// Package logging provides the leveled logger used throughout ledmatrix.
package logging

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"strings"
	"sync"
)

// Level represents log severity levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel returns the level named by s.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	mu     sync.RWMutex
	logger *log.Logger
}

// New returns a Logger writing messages of at least level to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(w, "", log.LstdFlags),
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(ioutil.Discard, LevelError)
}

// SetOutput changes where messages are written.
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetLevelFromString sets the log level from a string, falling back to
// info for anything unrecognised.
func (l *Logger) SetLevelFromString(s string) {
	level, _ := ParseLevel(s)
	l.SetLevel(level)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.GetLevel() {
		return
	}
	l.logger.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

type writer struct {
	l     *Logger
	level Level
}

func (w writer) Write(p []byte) (int, error) {
	w.l.log(w.level, "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// StdLogger returns a standard library logger that logs at level through
// l, for APIs such as http.Server.ErrorLog.
func (l *Logger) StdLogger(level Level) *log.Logger {
	return log.New(writer{l, level}, "", 0)
}
