// Package rasterkernel is the root facade: it re-exports the logger
// every subpackage shares, so a caller embedding this module doesn't
// need to import internal/rlog directly.
package rasterkernel

import (
	"log/slog"

	"github.com/gogpu/rasterkernel/internal/rlog"
)

// SetLogger installs the *slog.Logger every rasterkernel package logs
// through. Passing nil restores the silent default.
func SetLogger(l *slog.Logger) { rlog.Set(l) }

// Logger returns the currently active logger.
func Logger() *slog.Logger { return rlog.Get() }
