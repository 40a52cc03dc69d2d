// Package logger holds the structured logger shared by every engine package.
// By default nothing is logged.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// Set configures the logger used by the engine and all its sub-packages.
// Passing nil restores the silent default.
//
// Levels in use:
//   - [slog.LevelDebug]: per-frame details (jitter samples, pass timings, draw counts)
//   - [slog.LevelInfo]: lifecycle events (backend selected, resize, convergence)
//   - [slog.LevelWarn]: recoverable oddities (unsupported uniforms skipped, empty scenes)
//
// Parameters:
//   - l: the logger to install, or nil
func Set(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Get returns the current engine logger. Safe for concurrent use.
func Get() *slog.Logger {
	return loggerPtr.Load()
}

// For returns the engine logger tagged with a component attribute.
//
// Parameters:
//   - component: the name reported in the "component" attribute
//
// Returns:
//   - *slog.Logger: a child logger
func For(component string) *slog.Logger {
	return loggerPtr.Load().With(slog.String("component", component))
}
