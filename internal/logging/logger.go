// Package logging wires structured key/value logging for the expgrid commands.
package logging

import (
	"fmt"
	"io"

	"github.com/baditaflorin/l"
)

// #region port
// Logger is the structured logger used across expgrid packages.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Close() error
}
// #endregion port

// #region std-logger
// StdLogger adapts an l.Logger to Logger.
type StdLogger struct {
	logger l.Logger
}

// Options controls logger construction.
type Options struct {
	Output io.Writer
	JSON   bool
}

// New builds a logger writing to opts.Output. Writes are synchronous so log
// lines interleave correctly with trainer output and table rows.
func New(opts Options) (*StdLogger, error) {
	logger, err := l.NewStandardFactory().CreateLogger(l.Config{
		Output:      opts.Output,
		JsonFormat:  opts.JSON,
		AsyncWrite:  false,
		BufferSize:  64 * 1024,
		MaxFileSize: 10 * 1024 * 1024,
		MaxBackups:  3,
		AddSource:   false,
		Metrics:     false,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &StdLogger{logger: logger}, nil
}

func (s *StdLogger) Debug(msg string, keysAndValues ...interface{}) {
	s.logger.Debug(msg, keysAndValues...)
}

func (s *StdLogger) Info(msg string, keysAndValues ...interface{}) {
	s.logger.Info(msg, keysAndValues...)
}

func (s *StdLogger) Warn(msg string, keysAndValues ...interface{}) {
	s.logger.Warn(msg, keysAndValues...)
}

func (s *StdLogger) Error(msg string, keysAndValues ...interface{}) {
	s.logger.Error(msg, keysAndValues...)
}

// Close flushes and releases the underlying logger.
func (s *StdLogger) Close() error {
	return s.logger.Close()
}
// #endregion std-logger

// #region nop
type nopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Close() error                 { return nil }
// #endregion nop
