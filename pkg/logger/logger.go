package logger

// Logger is the logging interface used across the broker. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// With returns a logger that attaches the given key/value pairs to
	// every record it emits
	With(args ...interface{}) Logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (n nopLogger) With(...interface{}) Logger { return n }

// Nop returns a logger that discards everything
func Nop() Logger {
	return nopLogger{}
}
