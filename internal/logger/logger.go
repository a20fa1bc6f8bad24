// Package logger builds the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout. Production uses JSON lines;
// everything else uses the human-readable text formatter.
func New(level string, production bool) *logrus.Logger {
	return newWithOutput(os.Stdout, level, production)
}

func newWithOutput(out io.Writer, level string, production bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if production {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		l.WithField("level", level).Warn("unknown log level, using info")
	}
	l.SetLevel(lvl)
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
