package glasstokey

import (
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// Logger wraps charmbracelet/log with the engine's preferred defaults,
// replacing terma/log.go's hand-rolled file logger with a structured,
// leveled one. There is no package-level default logger; callers construct
// an instance explicitly (NewLogger, NewFileLogger).
type Logger struct {
	mu   sync.Mutex
	impl *charmlog.Logger
}

// NewLogger builds a Logger writing to stderr at info level, prefixed with
// the engine's component name.
func NewLogger() *Logger {
	impl := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Prefix:          "glasstokey",
		ReportTimestamp: true,
	})
	return &Logger{impl: impl}
}

// NewFileLogger opens (truncating) path and logs there instead of stderr,
// for long-running capture sessions where stderr is the injector's own
// channel.
func NewFileLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	impl := charmlog.NewWithOptions(f, charmlog.Options{
		Prefix:          "glasstokey",
		ReportTimestamp: true,
	})
	return &Logger{impl: impl}, nil
}

// SetLevel adjusts the minimum reported severity.
func (l *Logger) SetLevel(level charmlog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.impl.SetLevel(level)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.impl.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.impl.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.impl.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.impl.Errorf(format, args...)
}

// With returns a derived Logger carrying structured key/value fields on
// every subsequent call, mirroring charmlog's own With but keeping it under
// the engine's mutex-guarded wrapper.
func (l *Logger) With(keyvals ...any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{impl: l.impl.With(keyvals...)}
}
