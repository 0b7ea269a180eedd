package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "OFF"
	}
}

// ParseLevel accepts debug, info, warn and error; anything else is info.
func ParseLevel(s string) Level {
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

// Logger writes "[ts] [process] [component] [LEVEL] message" lines. All
// component loggers share one output and one process id.
type Logger struct {
	component string
	out       *output
}

type output struct {
	mu     sync.Mutex
	logger *log.Logger
	level  Level
}

var (
	processID     string
	processIDOnce sync.Once

	std = &output{logger: log.New(os.Stderr, "", 0), level: LevelInfo}
)

// ProcessID identifies this execution in every log line.
func ProcessID() string {
	processIDOnce.Do(func() {
		processID = uuid.New().String()[:8]
	})
	return processID
}

// New returns a logger for component writing to the shared process output.
func New(component string) *Logger {
	return &Logger{component: component, out: std}
}

// NewWithWriter returns a logger with its own output, mainly for tests.
func NewWithWriter(component string, w io.Writer, level Level) *Logger {
	return &Logger{component: component, out: &output{logger: log.New(w, "", 0), level: level}}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{component: "nop", out: &output{logger: log.New(io.Discard, "", 0), level: levelOff}}
}

// Configure sets the shared output and level used by loggers from New.
func Configure(w io.Writer, level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if w != nil {
		std.logger.SetOutput(w)
	}
	std.level = level
}

// With returns a logger for a sub-component sharing the same output.
func (l *Logger) With(component string) *Logger {
	return &Logger{component: l.component + "." + component, out: l.out}
}

func (l *Logger) logf(level Level, format string, v ...any) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if level < l.out.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, v...)
	l.out.logger.Printf("[%s] [%s] [%s] [%s] %s", ts, ProcessID(), l.component, level, msg)
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v...) }

// Printf logs at info level so the logger can stand in for *log.Logger.
func (l *Logger) Printf(format string, v ...any) { l.logf(LevelInfo, format, v...) }
