// Package logger configures the process-wide log/slog JSON logger and
// carries request-scoped loggers through context.Context.
//
// Test helpers in this package capture log output in a LogBuffer so tests
// can assert on individual fields.
package logger
