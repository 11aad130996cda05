// Package logging wires the engine's goroutines to a shared logrus logger.
package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(frame *runtime.Frame) (function string, file string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		},
	})
	return l
}

// SetLevel changes the package logger's verbosity. Callers (the CLI, tests)
// use this instead of reaching into logrus globals directly.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(level)
}

// SetOutput redirects where log lines go; the CLI points this at stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// For returns a logger entry scoped to a component name, e.g. logging.For("engine").
func For(component string) *logrus.Entry {
	mu.Lock()
	l := logger
	mu.Unlock()
	return l.WithField("component", component)
}
