package isodep

import (
	"io"
	"os"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	pkgLogger   = NewLogger(os.Stderr, "info")
	pkgLoggerMu sync.RWMutex
)

// NewLogger returns a logfmt logger writing to w which drops entries below
// the given level ("debug", "info", "warn" or "error").
func NewLogger(w io.Writer, lvl string) kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	l = level.NewFilter(l, levelOption(lvl))
	return kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
}

func levelOption(lvl string) level.Option {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

// SetLogger replaces the package logger used when building data sets and as
// the default logger of new drivers.
func SetLogger(l kitlog.Logger) {
	if l == nil {
		l = kitlog.NewNopLogger()
	}
	pkgLoggerMu.Lock()
	pkgLogger = l
	pkgLoggerMu.Unlock()
}

// Logger returns the package logger.
func Logger() kitlog.Logger {
	pkgLoggerMu.RLock()
	defer pkgLoggerMu.RUnlock()
	return pkgLogger
}

func logDebug(keyvals ...interface{}) {
	level.Debug(Logger()).Log(keyvals...)
}
