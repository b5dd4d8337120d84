// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

// SLogger abstracts the [*slog.Logger] behavior.
//
// This package uses three log levels:
//   - Info for request lifecycle events (suggest, status, geolocate, enrich)
//   - Debug for connection-level events and cache hits
//   - Warn for failures the caller chose not to see (e.g., enrichment errors)
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// DefaultSLogger returns the default [SLogger] to use.
//
// The default is a no-op logger that discards all output, so a widget
// core embedded in a larger program stays silent unless configured.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

// Debug implements [SLogger].
func (discardSLogger) Debug(msg string, args ...any) {}

// Info implements [SLogger].
func (discardSLogger) Info(msg string, args ...any) {}

// Warn implements [SLogger].
func (discardSLogger) Warn(msg string, args ...any) {}
