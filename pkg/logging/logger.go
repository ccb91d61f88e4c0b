// logger.go - logrus logger for the maintenance CLI.
//
// Usage:
//
//	log := logging.NewLogger("janitor")
//	log.WithField("deleted", n).Info("expired sessions removed")
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a logrus logger for a named service writing JSON to
// stdout. LOG_LEVEL selects the level (default info).
func NewLogger(service string) *logrus.Entry {
	return NewLoggerWithWriter(os.Stdout, service, os.Getenv("LOG_LEVEL"))
}

// NewLoggerWithWriter is NewLogger with an explicit sink and level.
func NewLoggerWithWriter(w io.Writer, service, levelStr string) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetOutput(w)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log.WithField("service", service)
}
