//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

var (
	silent    = slog.New(slog.DiscardHandler)
	loggerPtr atomic.Pointer[slog.Logger]
)

// slogger returns the package logger, tagged component=gpu once set.
func slogger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return silent
}

// SetLogger replaces the package logger. Passing nil restores the silent
// default. The root package forwards crimsonfx.SetLogger here.
func SetLogger(l *slog.Logger) {
	if l == nil {
		loggerPtr.Store(nil)
		return
	}
	loggerPtr.Store(l.With(slog.String("component", "gpu")))
}
