package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Leveled process logger used by the scheduler service.
// - Debug/Info/Warn/Error/Fatal printf variants, Init(level) at startup
// - *w variants append sorted key=value fields after the message

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Fields are structured key/value pairs rendered after the message.
type Fields map[string]interface{}

func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, f[k])
	}
	return b.String()
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
}

// SetOutput redirects log lines, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(lvl Level, name, format string, v ...interface{}) {
	if !shouldLog(lvl) {
		return
	}
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Printf(header(name)+format, v...)
}

func withFields(lvl Level, name, msg string, f Fields) {
	if len(f) == 0 {
		output(lvl, name, "%s", msg)
		return
	}
	output(lvl, name, "%s %s", msg, f.String())
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, "debug", format, v...) }
func Infof(format string, v ...interface{})  { output(LevelInfo, "info", format, v...) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, "warn", format, v...) }
func Errorf(format string, v ...interface{}) { output(LevelError, "error", format, v...) }

func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Printf(header("fatal")+format, v...)
	os.Exit(1)
}

func Debugw(msg string, f Fields) { withFields(LevelDebug, "debug", msg, f) }
func Infow(msg string, f Fields)  { withFields(LevelInfo, "info", msg, f) }
func Warnw(msg string, f Fields)  { withFields(LevelWarn, "warn", msg, f) }
func Errorw(msg string, f Fields) { withFields(LevelError, "error", msg, f) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
