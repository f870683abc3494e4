// Package obslog wires up the structured logger shared by every component.
// Components fetch a child logger via Component("name") rather than calling
// slog.Default directly, so a job id / process id can be attached uniformly.
package obslog

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	base   *slog.Logger
	inited bool
)

// Init installs the process-wide base logger. Safe to call once at startup;
// subsequent calls are no-ops so tests can call it defensively.
func Init(level slog.Level, jsonOutput bool) {
	mu.Lock()
	defer mu.Unlock()
	if inited {
		return
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	base = slog.New(handler)
	slog.SetDefault(base)
	inited = true
}

// Component returns a logger tagged with the given component name. If Init
// was never called, it falls back to slog.Default() so packages never nil-panic.
func Component(name string) *slog.Logger {
	mu.Lock()
	l := base
	mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}
