package crimsonfx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

var (
	hooksMu     sync.Mutex
	loggerHooks []func(*slog.Logger)
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for crimsonfx and its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels:
//   - [slog.LevelDebug]: target allocation, resize, degrade level changes
//   - [slog.LevelInfo]: lifecycle (adapter selected, engine started/stopped)
//   - [slog.LevelWarn]: recoverable issues (swapchain reconfigured, bad config reload)
//
// Example:
//
//	crimsonfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	hooksMu.Lock()
	hooks := loggerHooks
	hooksMu.Unlock()
	for _, h := range hooks {
		h(l)
	}
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// registerLoggerHook arranges for h to receive the current logger now and on
// every later SetLogger call. GPU backends register through it so the root
// package does not import them unconditionally.
func registerLoggerHook(h func(*slog.Logger)) {
	hooksMu.Lock()
	loggerHooks = append(loggerHooks, h)
	hooksMu.Unlock()
	h(Logger())
}
