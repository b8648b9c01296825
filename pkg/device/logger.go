package device

// Logger is the observability sink injected into a device. The CLI
// routes it into the teleoperation log pane; tests leave it unset.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }
