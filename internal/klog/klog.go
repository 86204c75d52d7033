// Package klog provides the kernel's single slog.Logger instance.
//
// The teacher repo wires every subsystem through log/slog rather than a
// bespoke logging shim (see cmd/ccapp/site_config.go and 44 other call
// sites in the original tree); the kernel core does the same so boot,
// executor, trap, and syscall diagnostics share one structured sink.
package klog

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// L returns the kernel logger.
func L() *slog.Logger { return logger }

// SetLevel adjusts verbosity; used by cmd/arona's -v flag.
func SetLevel(level slog.Level) {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
