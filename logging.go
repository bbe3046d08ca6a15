package p2pchat

// Logger defines the logging interface used throughout the node.
// *slog.Logger satisfies it directly; internal/logging adapts zap.
//
// Implementations must be safe for concurrent use.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	// Used for verbose diagnostic information useful during development.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	// Used for connection establishment and teardown.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	// Used for dropped frames and rejected handshakes.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	// Used for failures that stop a component.
	Error(msg string, keysAndValues ...any)
}

// NopLogger is a no-op logger implementation that discards all log messages.
// It is the default logger when no logger is configured.
type NopLogger struct{}

// Ensure NopLogger implements Logger.
var _ Logger = NopLogger{}

// Debug implements Logger.Debug (no-op).
func (NopLogger) Debug(msg string, keysAndValues ...any) {}

// Info implements Logger.Info (no-op).
func (NopLogger) Info(msg string, keysAndValues ...any) {}

// Warn implements Logger.Warn (no-op).
func (NopLogger) Warn(msg string, keysAndValues ...any) {}

// Error implements Logger.Error (no-op).
func (NopLogger) Error(msg string, keysAndValues ...any) {}
