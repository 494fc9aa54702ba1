package downloader

import "github.com/aptsec/samplerelay/pkg/log"

// Logger receives the progress messages the downloader emits at each step.
// Purely observational, implementations must not affect control flow.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards all messages
type NopLogger struct{}

func (NopLogger) Infof(format string, args ...any)  {}
func (NopLogger) Errorf(format string, args ...any) {}

// StdLogger forwards messages to the process-wide leveled logger
type StdLogger struct{}

func (StdLogger) Infof(format string, args ...any) {
	log.Infof(format, args...)
}

func (StdLogger) Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}
