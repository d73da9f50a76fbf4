package logger

import (
	"context"
	"os"
	"sync"

	"github.com/tphakala/scopelog/internal/format"
)

// Global dispatcher instance
var (
	globalDispatcher   *Dispatcher
	globalDispatcherMu sync.Mutex
)

// SetGlobal sets the dispatcher used by the package-level helpers.
// Passing nil restores the fallback.
func SetGlobal(d *Dispatcher) {
	globalDispatcherMu.Lock()
	defer globalDispatcherMu.Unlock()
	globalDispatcher = d
}

// Global returns the dispatcher set with SetGlobal. Without one it creates
// a fallback writing to stderr with a warn threshold and no rules.
func Global() *Dispatcher {
	globalDispatcherMu.Lock()
	defer globalDispatcherMu.Unlock()

	if globalDispatcher != nil {
		return globalDispatcher
	}

	f, err := format.New(format.DefaultConfig(), format.WithOutput(os.Stderr))
	if err != nil {
		// the default configuration always compiles
		panic(err)
	}
	globalDispatcher = NewDispatcher(NewRegistry(LevelWarn), f, NewWriterSink(os.Stderr))
	return globalDispatcher
}

func logGlobal(ctx context.Context, lvl Level, msg string, fields []Field) {
	_ = Global().emit(ctx, lvl, Caller(2), 0, skipGlobal, Msg(msg), fields)
}

// Critical logs at LevelCritical through the global dispatcher.
func Critical(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelCritical, msg, fields)
}

// Error logs at LevelError through the global dispatcher.
func Error(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelError, msg, fields)
}

// Warn logs at LevelWarn through the global dispatcher.
func Warn(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelWarn, msg, fields)
}

// Note logs at LevelNote through the global dispatcher.
func Note(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelNote, msg, fields)
}

// Info logs at LevelInfo through the global dispatcher.
func Info(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelInfo, msg, fields)
}

// Debug logs at LevelDebug through the global dispatcher.
func Debug(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelDebug, msg, fields)
}

// Trace logs at LevelTrace through the global dispatcher.
func Trace(ctx context.Context, msg string, fields ...Field) {
	logGlobal(ctx, LevelTrace, msg, fields)
}
