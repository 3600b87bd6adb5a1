package results

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel is the severity of a package log message. Messages below
// the configured level are dropped.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var levelPrefixes = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var currentLevel = int32(LevelInfo)

// baseLogger writes to stderr, keeping scan noise out of command
// output. Tests swap it for a buffer.
var baseLogger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

// SetLogLevel sets the package level from a -loglevel flag value
// ("debug", "info", "warn"/"warning", "error"). Unknown names leave
// the level unchanged.
func SetLogLevel(s string) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return
	}
	atomic.StoreInt32(&currentLevel, int32(l))
}

// GetLogLevel reports the current level so callers can gate work that
// is only worth doing when debug logging is on.
func GetLogLevel() LogLevel { return LogLevel(atomic.LoadInt32(&currentLevel)) }

func logf(l LogLevel, format string, args ...interface{}) {
	if LogLevel(atomic.LoadInt32(&currentLevel)) > l {
		return
	}
	msg := format
	// Loader messages quote file names and CaR percentages, so a
	// pre-formatted message can contain literal % signs. Sprintf runs
	// only when there are args to substitute.
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	baseLogger.Printf("[%s] %s", levelPrefixes[l], msg)
}

// Leveled printf-style helpers.
func Debugf(format string, a ...interface{}) { logf(LevelDebug, format, a...) }
func Infof(format string, a ...interface{})  { logf(LevelInfo, format, a...) }
func Warnf(format string, a ...interface{})  { logf(LevelWarn, format, a...) }
func Errorf(format string, a ...interface{}) { logf(LevelError, format, a...) }

// TimeTrack logs the elapsed time of a phase at debug level; use with
// defer from the top of the phase.
func TimeTrack(start time.Time, label string) {
	Debugf("%s took %s", label, time.Since(start))
}
