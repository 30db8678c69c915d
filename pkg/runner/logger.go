package runner

import "github.com/rs/zerolog"

// Logger is the small structured-logging interface the rest of the
// codebase depends on. Keys and values alternate, zap-style.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// NewNoopLogger returns a logger that discards everything. Useful in
// tests and as the Runner default.
func NewNoopLogger() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}

// NewZerologLogger adapts a zerolog.Logger to the Logger interface.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return zerologLogger{zl: zl}
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Info(), msg, keysAndValues)
}

func (l zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Error(), msg, keysAndValues)
}

func (l zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Debug(), msg, keysAndValues)
}

func (l zerologLogger) emit(ev *zerolog.Event, msg string, kvs []interface{}) {
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kvs[i+1])
	}
	ev.Msg(msg)
}
